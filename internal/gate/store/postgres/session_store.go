package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// SessionStore is safe to share between stations and processes: Open relies
// on the sessions_one_open_per_identity partial unique index through
// ON CONFLICT, and Close only updates rows whose closed_at is still NULL.
type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `session_id, identity_id, opened_at, closed_at, method, close_method, opened_by, closed_by`

func (s *SessionStore) Open(ctx context.Context, req store.OpenRequest) (store.Session, error) {
	if _, ok := store.ParseMethod(string(req.Method)); !ok {
		return store.Session{}, fmt.Errorf("open session: invalid method %q", req.Method)
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	sess := store.Session{
		SessionID:  uuid.NewString(),
		IdentityID: req.IdentityID,
		OpenedAt:   req.At.UTC().Truncate(time.Microsecond),
		Method:     req.Method,
		OpenedBy:   req.StationID,
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, identity_id, opened_at, method, opened_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identity_id) WHERE closed_at IS NULL DO NOTHING
	`, sess.SessionID, sess.IdentityID, sess.OpenedAt, string(sess.Method), sess.OpenedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return store.Session{}, store.ErrConflict
		}
		return store.Session{}, fmt.Errorf("open session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Session{}, fmt.Errorf("open session rows affected: %w", err)
	}
	if n == 0 {
		return store.Session{}, store.ErrConflict
	}
	return sess, nil
}

func (s *SessionStore) Close(ctx context.Context, req store.CloseRequest) (store.Session, error) {
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	var closeMethod any
	if req.Method != "" {
		closeMethod = string(req.Method)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE sessions
		SET closed_at = $1, close_method = $2, closed_by = $3
		WHERE session_id = $4 AND closed_at IS NULL
		RETURNING `+sessionColumns,
		req.At.UTC().Truncate(time.Microsecond), closeMethod, req.StationID, req.SessionID)
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, fmt.Errorf("close session: %w", err)
	}

	if _, err := s.Get(ctx, req.SessionID); err != nil {
		return store.Session{}, err
	}
	return store.Session{}, store.ErrAlreadyClosed
}

func (s *SessionStore) Latest(ctx context.Context, identityID string) (store.Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE identity_id = $1
		ORDER BY (closed_at IS NULL) DESC, opened_at DESC, seq DESC
		LIMIT 1
	`, identityID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, false, nil
	}
	if err != nil {
		return store.Session{}, false, fmt.Errorf("latest session: %w", err)
	}
	return sess, true, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (store.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return store.Session{}, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) List(ctx context.Context, f store.SessionFilter) ([]store.Session, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.IdentityID != "" {
		where = append(where, "identity_id = "+arg(f.IdentityID))
	}
	if !f.From.IsZero() {
		where = append(where, "opened_at >= "+arg(f.From.UTC()))
	}
	if !f.To.IsZero() {
		where = append(where, "opened_at < "+arg(f.To.UTC()))
	}
	if f.OpenOnly {
		where = append(where, "closed_at IS NULL")
	}

	q := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY opened_at DESC, seq DESC"
	if f.Limit > 0 {
		q += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []store.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(r rowScanner) (store.Session, error) {
	var (
		sess        store.Session
		closedAt    sql.NullTime
		method      string
		closeMethod sql.NullString
		closedBy    sql.NullString
	)
	if err := r.Scan(&sess.SessionID, &sess.IdentityID, &sess.OpenedAt, &closedAt, &method,
		&closeMethod, &sess.OpenedBy, &closedBy); err != nil {
		return store.Session{}, err
	}
	sess.OpenedAt = sess.OpenedAt.UTC()
	if closedAt.Valid {
		t := closedAt.Time.UTC()
		sess.ClosedAt = &t
	}
	sess.Method = store.Method(method)
	sess.CloseMethod = store.Method(closeMethod.String)
	sess.ClosedBy = closedBy.String
	return sess, nil
}
