package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ensureStation guarantees a stations row exists for stationID.
//
// New rows start disabled and uncommissioned; only Commission (or the dev
// seeder) sets enabled=1 and commissioned_at_ms.
//
// Must be called inside an existing transaction.
func ensureStation(ctx context.Context, tx *sql.Tx, stationID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO stations(
  station_id, enabled, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, stationID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureStation %s: %w", stationID, err)
	}
	return nil
}

// isConstraintViolation reports whether err is any SQLite constraint
// failure (extended codes share the primary code in the low byte).
func isConstraintViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
