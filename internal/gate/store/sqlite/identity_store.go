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

type IdentityStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewIdentityStore(db *sql.DB, writer *dbpkg.Worker) *IdentityStore {
	return &IdentityStore{db: db, writer: writer}
}

const identityColumns = `identity_id, display_name, department, year, phone, email, status,
       descriptor, registered_at_ms, updated_at_ms`

func (s *IdentityStore) Create(ctx context.Context, id store.Identity) error {
	now := time.Now().UTC()
	if id.RegisteredAt.IsZero() {
		id.RegisteredAt = now
	}
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = id.RegisteredAt
	}
	if id.Status == "" {
		id.Status = store.StatusActive
	}
	blob, dim := encodeDescriptor(id.Descriptor)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO identities(
  identity_id, display_name, department, year, phone, email, status,
  descriptor, descriptor_dim, registered_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			id.IdentityID, id.DisplayName, id.Department, id.Year, id.Phone, id.Email, id.Status,
			blob, dim, id.RegisteredAt.UTC().UnixMilli(), id.UpdatedAt.UTC().UnixMilli(),
		)
		if err != nil {
			if isConstraintViolation(err) {
				return store.ErrDuplicate
			}
			return fmt.Errorf("Create identity insert: %w", err)
		}
		return nil
	})
}

func (s *IdentityStore) Update(ctx context.Context, id store.Identity) error {
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = time.Now().UTC()
	}
	if id.Status == "" {
		id.Status = store.StatusActive
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE identities
SET display_name = ?, department = ?, year = ?, phone = ?, email = ?,
    status = ?, updated_at_ms = ?
WHERE identity_id = ?;
`,
			id.DisplayName, id.Department, id.Year, id.Phone, id.Email,
			id.Status, id.UpdatedAt.UTC().UnixMilli(), id.IdentityID,
		)
		if err != nil {
			return fmt.Errorf("Update identity: %w", err)
		}
		return requireOneRow(res)
	})
}

func (s *IdentityStore) SetDescriptor(ctx context.Context, identityID string, descriptor []float32, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	blob, dim := encodeDescriptor(descriptor)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE identities
SET descriptor = ?, descriptor_dim = ?, updated_at_ms = ?
WHERE identity_id = ?;
`, blob, dim, at.UTC().UnixMilli(), identityID)
		if err != nil {
			return fmt.Errorf("SetDescriptor: %w", err)
		}
		return requireOneRow(res)
	})
}

func (s *IdentityStore) Delete(ctx context.Context, identityID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = ?;`, identityID)
		if err != nil {
			return fmt.Errorf("Delete identity: %w", err)
		}
		return requireOneRow(res)
	})
}

func (s *IdentityStore) Get(ctx context.Context, identityID string) (store.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE identity_id = ?;`, identityID)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, store.ErrNotFound
	}
	if err != nil {
		return store.Identity{}, fmt.Errorf("Get identity: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) List(ctx context.Context, f store.IdentityFilter) ([]store.Identity, error) {
	var q strings.Builder
	q.WriteString(`SELECT ` + identityColumns + ` FROM identities`)
	if f.WithDescriptor {
		q.WriteString(` WHERE descriptor IS NOT NULL`)
	}
	q.WriteString(` ORDER BY identity_id;`)

	rows, err := s.db.QueryContext(ctx, q.String())
	if err != nil {
		return nil, fmt.Errorf("List identities: %w", err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("List identities scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(r rowScanner) (store.Identity, error) {
	var (
		id           store.Identity
		blob         []byte
		registeredMs int64
		updatedMs    int64
	)
	if err := r.Scan(
		&id.IdentityID, &id.DisplayName, &id.Department, &id.Year, &id.Phone, &id.Email, &id.Status,
		&blob, &registeredMs, &updatedMs,
	); err != nil {
		return store.Identity{}, err
	}
	desc, err := decodeDescriptor(blob)
	if err != nil {
		return store.Identity{}, fmt.Errorf("identity %s: %w", id.IdentityID, err)
	}
	id.Descriptor = desc
	id.RegisteredAt = time.UnixMilli(registeredMs).UTC()
	id.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return id, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
