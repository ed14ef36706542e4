package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Stations are commissioned (enabled) so dev scanners work right away.
	Stations []string
}

type seedIdentity struct {
	id, name, dept, year string
}

var devIdentities = []seedIdentity{
	{"S1001", "Ada Lovelace", "Computer Science", "3"},
	{"S1002", "Alan Turing", "Mathematics", "2"},
	{"S1003", "Grace Hopper", "Computer Science", "4"},
}

// SeedDev inserts a handful of QR-only demo identities and commissions the
// given stations. Existing rows are left alone.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	for _, s := range devIdentities {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO identities(
  identity_id, display_name, department, year, status,
  registered_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, 'Active', ?, ?);`, s.id, s.name, s.dept, s.year, now, now); err != nil {
			return fmt.Errorf("seed identity %s: %w", s.id, err)
		}
	}

	for _, sid := range opt.Stations {
		sid = strings.TrimSpace(sid)
		if sid == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO stations(
  station_id, display_name, enabled, commissioned_at_ms,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT(station_id) DO UPDATE SET
  enabled = 1,
  commissioned_at_ms = COALESCE(stations.commissioned_at_ms, excluded.commissioned_at_ms),
  updated_at_ms = excluded.updated_at_ms;
`, sid, sid, now, now, now); err != nil {
			return fmt.Errorf("seed station %s: %w", sid, err)
		}
	}

	return nil
}
