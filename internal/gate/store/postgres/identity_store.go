package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

const identityColumns = `identity_id, display_name, department, year, phone, email, status,
	descriptor, registered_at, updated_at`

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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (identity_id, display_name, department, year, phone, email, status,
			descriptor, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id.IdentityID, id.DisplayName, id.Department, id.Year, id.Phone, id.Email, id.Status,
		vectorArg(id.Descriptor), id.RegisteredAt, id.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (s *IdentityStore) Update(ctx context.Context, id store.Identity) error {
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = time.Now().UTC()
	}
	if id.Status == "" {
		id.Status = store.StatusActive
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities
		SET display_name = $1, department = $2, year = $3, phone = $4, email = $5,
			status = $6, updated_at = $7
		WHERE identity_id = $8
	`, id.DisplayName, id.Department, id.Year, id.Phone, id.Email, id.Status, id.UpdatedAt, id.IdentityID)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return requireOneRow(res)
}

func (s *IdentityStore) SetDescriptor(ctx context.Context, identityID string, descriptor []float32, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE identities SET descriptor = $1, updated_at = $2 WHERE identity_id = $3
	`, vectorArg(descriptor), at, identityID)
	if err != nil {
		return fmt.Errorf("set descriptor: %w", err)
	}
	return requireOneRow(res)
}

func (s *IdentityStore) Delete(ctx context.Context, identityID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return requireOneRow(res)
}

func (s *IdentityStore) Get(ctx context.Context, identityID string) (store.Identity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM identities WHERE identity_id = $1`, identityID)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Identity{}, store.ErrNotFound
	}
	if err != nil {
		return store.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	return id, nil
}

func (s *IdentityStore) List(ctx context.Context, f store.IdentityFilter) ([]store.Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities`
	if f.WithDescriptor {
		q += ` WHERE descriptor IS NOT NULL`
	}
	q += ` ORDER BY identity_id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []store.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// nullVector scans a nullable pgvector column.
type nullVector struct {
	vec   pgvector.Vector
	valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.vec.Scan(src)
}

func vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	return pgvector.NewVector(v)
}

func scanIdentity(r rowScanner) (store.Identity, error) {
	var (
		id   store.Identity
		desc nullVector
	)
	if err := r.Scan(&id.IdentityID, &id.DisplayName, &id.Department, &id.Year, &id.Phone, &id.Email,
		&id.Status, &desc, &id.RegisteredAt, &id.UpdatedAt); err != nil {
		return store.Identity{}, err
	}
	if desc.valid {
		id.Descriptor = desc.vec.Slice()
	}
	id.RegisteredAt = id.RegisteredAt.UTC()
	id.UpdatedAt = id.UpdatedAt.UTC()
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
