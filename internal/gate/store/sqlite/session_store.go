package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/BrandonDHaskell/Portunus/gate/internal/db"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// SessionStore persists the presence log. Both writes are conditional:
// Open inserts only when no open row exists for the identity (backed by the
// sessions_one_open_per_identity partial unique index), and Close updates
// only a row whose closed_at_ms is still NULL.
type SessionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSessionStore(db *sql.DB, writer *dbpkg.Worker) *SessionStore {
	return &SessionStore{db: db, writer: writer}
}

const sessionColumns = `session_id, identity_id, opened_at_ms, closed_at_ms, method,
       close_method, opened_by, closed_by`

func (s *SessionStore) Open(ctx context.Context, req store.OpenRequest) (store.Session, error) {
	if _, ok := store.ParseMethod(string(req.Method)); !ok {
		return store.Session{}, fmt.Errorf("Open: invalid method %q", req.Method)
	}
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}
	openedMs := req.At.UTC().UnixMilli()

	sess := store.Session{
		SessionID:  uuid.NewString(),
		IdentityID: req.IdentityID,
		OpenedAt:   time.UnixMilli(openedMs).UTC(),
		Method:     req.Method,
		OpenedBy:   req.StationID,
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO sessions(session_id, identity_id, opened_at_ms, method, opened_by)
SELECT ?, ?, ?, ?, ?
WHERE NOT EXISTS (
  SELECT 1 FROM sessions WHERE identity_id = ? AND closed_at_ms IS NULL
);
`,
			sess.SessionID, sess.IdentityID, openedMs, string(sess.Method), sess.OpenedBy,
			sess.IdentityID,
		)
		if err != nil {
			if isConstraintViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("Open insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Open rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrConflict
		}
		return nil
	})
	if err != nil {
		return store.Session{}, err
	}
	return sess, nil
}

func (s *SessionStore) Close(ctx context.Context, req store.CloseRequest) (store.Session, error) {
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}
	closedMs := req.At.UTC().UnixMilli()

	var out store.Session
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE sessions
SET closed_at_ms = ?, close_method = ?, closed_by = ?
WHERE session_id = ? AND closed_at_ms IS NULL;
`, closedMs, nullableMethod(req.Method), req.StationID, req.SessionID)
		if err != nil {
			return fmt.Errorf("Close update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Close rows affected: %w", err)
		}

		row := tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?;`, req.SessionID)
		sess, err := scanSession(row)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("Close read back: %w", err)
		}
		if n == 0 {
			return store.ErrAlreadyClosed
		}
		out = sess
		return nil
	})
	if err != nil {
		return store.Session{}, err
	}
	return out, nil
}

func (s *SessionStore) Latest(ctx context.Context, identityID string) (store.Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM sessions
WHERE identity_id = ?
ORDER BY (closed_at_ms IS NULL) DESC, opened_at_ms DESC, rowid DESC
LIMIT 1;
`, identityID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, false, nil
	}
	if err != nil {
		return store.Session{}, false, fmt.Errorf("Latest session: %w", err)
	}
	return sess, true, nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (store.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?;`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("Get session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) List(ctx context.Context, f store.SessionFilter) ([]store.Session, error) {
	var (
		where []string
		args  []any
	)
	if f.IdentityID != "" {
		where = append(where, "identity_id = ?")
		args = append(args, f.IdentityID)
	}
	if !f.From.IsZero() {
		where = append(where, "opened_at_ms >= ?")
		args = append(args, f.From.UTC().UnixMilli())
	}
	if !f.To.IsZero() {
		where = append(where, "opened_at_ms < ?")
		args = append(args, f.To.UTC().UnixMilli())
	}
	if f.OpenOnly {
		where = append(where, "closed_at_ms IS NULL")
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + sessionColumns + ` FROM sessions`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY opened_at_ms DESC, rowid DESC")
	if f.Limit > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	q.WriteString(";")

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("List sessions: %w", err)
	}
	defer rows.Close()

	var out []store.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("List sessions scan: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(r rowScanner) (store.Session, error) {
	var (
		sess        store.Session
		openedMs    int64
		closedMs    sql.NullInt64
		method      string
		closeMethod sql.NullString
		closedBy    sql.NullString
	)
	if err := r.Scan(
		&sess.SessionID, &sess.IdentityID, &openedMs, &closedMs, &method,
		&closeMethod, &sess.OpenedBy, &closedBy,
	); err != nil {
		return store.Session{}, err
	}
	sess.OpenedAt = time.UnixMilli(openedMs).UTC()
	if closedMs.Valid {
		t := time.UnixMilli(closedMs.Int64).UTC()
		sess.ClosedAt = &t
	}
	sess.Method = store.Method(method)
	sess.CloseMethod = store.Method(closeMethod.String)
	sess.ClosedBy = closedBy.String
	return sess, nil
}

func nullableMethod(m store.Method) any {
	if m == "" {
		return nil
	}
	return string(m)
}
