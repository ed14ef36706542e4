package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Portunus/gate/internal/db"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

type StationStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewStationStore(db *sql.DB, writer *dbpkg.Worker) *StationStore {
	return &StationStore{db: db, writer: writer}
}

// IsKnown treats "known" as commissioned + enabled + not revoked.
func (s *StationStore) IsKnown(ctx context.Context, stationID string) (bool, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return false, nil
	}

	var enabled int
	var commissioned sql.NullInt64
	var revoked sql.NullInt64

	err := s.db.QueryRowContext(ctx, `
SELECT enabled, commissioned_at_ms, revoked_at_ms
FROM stations
WHERE station_id = ?;
`, stationID).Scan(&enabled, &commissioned, &revoked)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsKnown query: %w", err)
	}

	return enabled == 1 && commissioned.Valid && !revoked.Valid, nil
}

// MarkSeen ensures the station row exists (even if unknown) and updates
// last_seen.
func (s *StationStore) MarkSeen(ctx context.Context, stationID string, _ bool, t time.Time) error {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureStation(ctx, tx, stationID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE stations
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE station_id = ?;
`, ms, ms, stationID); err != nil {
			return fmt.Errorf("MarkSeen update station: %w", err)
		}
		return nil
	})
}

// Commission enables the given stations, creating rows as needed. A
// previously revoked station stays revoked.
func (s *StationStore) Commission(ctx context.Context, stationIDs []string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, id := range stationIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if err := ensureStation(ctx, tx, id, ms); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
UPDATE stations
SET enabled = 1,
    commissioned_at_ms = COALESCE(commissioned_at_ms, ?),
    updated_at_ms = ?
WHERE station_id = ?;
`, ms, ms, id); err != nil {
				return fmt.Errorf("Commission %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *StationStore) List(ctx context.Context) ([]store.StationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT station_id, enabled, commissioned_at_ms, revoked_at_ms, last_seen_at_ms
FROM stations
ORDER BY station_id;
`)
	if err != nil {
		return nil, fmt.Errorf("List stations: %w", err)
	}
	defer rows.Close()

	var out []store.StationRecord
	for rows.Next() {
		var (
			rec          store.StationRecord
			enabled      int
			commissioned sql.NullInt64
			revoked      sql.NullInt64
			lastSeen     sql.NullInt64
		)
		if err := rows.Scan(&rec.StationID, &enabled, &commissioned, &revoked, &lastSeen); err != nil {
			return nil, fmt.Errorf("List stations scan: %w", err)
		}
		rec.Known = enabled == 1 && commissioned.Valid && !revoked.Valid
		if lastSeen.Valid {
			rec.LastSeen = time.UnixMilli(lastSeen.Int64).UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
