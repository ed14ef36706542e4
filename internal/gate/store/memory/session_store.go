package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// SessionStore is an in-memory append-only presence log. The open index
// is checked and written under the same lock, which gives Open the same
// conditional-write guarantee the SQL backends get from their partial
// unique index.
type SessionStore struct {
	mu       sync.Mutex
	sessions []store.Session
	byID     map[string]int // session id -> index into sessions
	open     map[string]int // identity id -> index of its open session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		byID: make(map[string]int),
		open: make(map[string]int),
	}
}

func (s *SessionStore) Open(_ context.Context, req store.OpenRequest) (store.Session, error) {
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.open[req.IdentityID]; ok {
		return store.Session{}, store.ErrConflict
	}

	sess := store.Session{
		SessionID:  uuid.NewString(),
		IdentityID: req.IdentityID,
		OpenedAt:   req.At,
		Method:     req.Method,
		OpenedBy:   req.StationID,
	}
	s.sessions = append(s.sessions, sess)
	idx := len(s.sessions) - 1
	s.byID[sess.SessionID] = idx
	s.open[req.IdentityID] = idx
	return sess, nil
}

func (s *SessionStore) Close(_ context.Context, req store.CloseRequest) (store.Session, error) {
	if req.At.IsZero() {
		req.At = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[req.SessionID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	sess := s.sessions[idx]
	if sess.ClosedAt != nil {
		return store.Session{}, store.ErrAlreadyClosed
	}

	at := req.At
	sess.ClosedAt = &at
	sess.CloseMethod = req.Method
	sess.ClosedBy = req.StationID
	s.sessions[idx] = sess
	delete(s.open, sess.IdentityID)
	return copySession(sess), nil
}

// Latest returns the identity's open session if it has one, otherwise the
// session with the greatest OpenedAt.
func (s *SessionStore) Latest(_ context.Context, identityID string) (store.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.open[identityID]; ok {
		return copySession(s.sessions[idx]), true, nil
	}

	var (
		best  store.Session
		found bool
	)
	for _, sess := range s.sessions {
		if sess.IdentityID != identityID {
			continue
		}
		if !found || !sess.OpenedAt.Before(best.OpenedAt) {
			best = sess
			found = true
		}
	}
	if !found {
		return store.Session{}, false, nil
	}
	return copySession(best), true, nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[sessionID]
	if !ok {
		return store.Session{}, store.ErrNotFound
	}
	return copySession(s.sessions[idx]), nil
}

// List returns matching sessions newest first.
func (s *SessionStore) List(_ context.Context, f store.SessionFilter) ([]store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Session
	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if f.IdentityID != "" && sess.IdentityID != f.IdentityID {
			continue
		}
		if !f.From.IsZero() && sess.OpenedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !sess.OpenedAt.Before(f.To) {
			continue
		}
		if f.OpenOnly && sess.ClosedAt != nil {
			continue
		}
		out = append(out, copySession(sess))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Sessions returns a copy of the whole log in insertion order. Test-only helper.
func (s *SessionStore) Sessions() []store.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = copySession(sess)
	}
	return out
}

func copySession(s store.Session) store.Session {
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		s.ClosedAt = &t
	}
	return s
}
