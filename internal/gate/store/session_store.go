package store

import (
	"context"
	"time"
)

// Session is one presence interval. ClosedAt is nil while the identity is
// inside. Method records how the session was opened; CloseMethod how it
// was closed.
type Session struct {
	SessionID   string
	IdentityID  string
	OpenedAt    time.Time
	ClosedAt    *time.Time
	Method      Method
	CloseMethod Method
	OpenedBy    string // station id
	ClosedBy    string
}

// Open reports whether the session has not been closed yet.
func (s Session) Open() bool { return s.ClosedAt == nil }

// Duration is zero for open sessions.
func (s Session) Duration() time.Duration {
	if s.ClosedAt == nil {
		return 0
	}
	return s.ClosedAt.Sub(s.OpenedAt)
}

type OpenRequest struct {
	IdentityID string
	Method     Method
	StationID  string
	At         time.Time
}

type CloseRequest struct {
	SessionID string
	Method    Method
	StationID string
	At        time.Time
}

// SessionFilter narrows List. Zero values mean "no constraint"; From is
// inclusive and To exclusive on OpenedAt.
type SessionFilter struct {
	IdentityID string
	From       time.Time
	To         time.Time
	OpenOnly   bool
	Limit      int
}

// SessionStore is the append-only presence log and the authority for the
// one-open-session-per-identity invariant.
//
// Open must fail with ErrConflict when the identity already has an open
// session, regardless of what the caller observed beforehand. Close must
// fail with ErrNotFound or ErrAlreadyClosed instead of overwriting. Sessions
// are never deleted.
//
// Latest returns the identity's open session whenever one exists, even if a
// closed session has a later OpenedAt (stations with skewed clocks share a
// store); otherwise the most recently opened one.
type SessionStore interface {
	Open(ctx context.Context, req OpenRequest) (Session, error)
	Close(ctx context.Context, req CloseRequest) (Session, error)
	Latest(ctx context.Context, identityID string) (Session, bool, error)
	Get(ctx context.Context, sessionID string) (Session, error)
	List(ctx context.Context, f SessionFilter) ([]Session, error)
}
