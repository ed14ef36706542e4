package service_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
)

func silentLogger() *log.Logger {
	return log.New(io.Discard)
}

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// fakeClock is a settable Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// newTestResolver builds a Resolver over an in-memory session store,
// returning the resolver, its guard and the store.
func newTestResolver(t *testing.T) (*service.Resolver, *service.DebounceGuard, *memory.SessionStore) {
	t.Helper()
	guard := service.NewDebounceGuard(5 * time.Second)
	sessions := memory.NewSessionStore()
	return service.NewResolver(guard, sessions, silentLogger()), guard, sessions
}

func openCount(t *testing.T, ss store.SessionStore, identityID string) int {
	t.Helper()
	open, err := ss.List(context.Background(), store.SessionFilter{IdentityID: identityID, OpenOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return len(open)
}

// barrierSessionStore holds the first n Latest calls until all n have read,
// so n resolvers observe the same state before any of them writes.
type barrierSessionStore struct {
	store.SessionStore
	calls   atomic.Int32
	n       int32
	arrived sync.WaitGroup
}

func newBarrierSessionStore(inner store.SessionStore, n int) *barrierSessionStore {
	b := &barrierSessionStore{SessionStore: inner, n: int32(n)}
	b.arrived.Add(n)
	return b
}

func (b *barrierSessionStore) Latest(ctx context.Context, identityID string) (store.Session, bool, error) {
	sess, ok, err := b.SessionStore.Latest(ctx, identityID)
	if b.calls.Add(1) <= b.n {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return sess, ok, err
}

// conflictingSessionStore fails the first failOpens calls to Open with
// ErrConflict without writing anything. A negative value fails every call.
type conflictingSessionStore struct {
	store.SessionStore
	mu        sync.Mutex
	failOpens int
	opens     int
}

func (c *conflictingSessionStore) Open(ctx context.Context, req store.OpenRequest) (store.Session, error) {
	c.mu.Lock()
	c.opens++
	fail := c.failOpens < 0 || c.opens <= c.failOpens
	c.mu.Unlock()
	if fail {
		return store.Session{}, store.ErrConflict
	}
	return c.SessionStore.Open(ctx, req)
}

var errStoreDown = errors.New("store down")

// brokenSessionStore fails every call.
type brokenSessionStore struct {
	store.SessionStore
}

func (brokenSessionStore) Latest(context.Context, string) (store.Session, bool, error) {
	return store.Session{}, false, errStoreDown
}

// writeFailingSessionStore reads fine but fails every Open.
type writeFailingSessionStore struct {
	store.SessionStore
}

func (writeFailingSessionStore) Open(context.Context, store.OpenRequest) (store.Session, error) {
	return store.Session{}, errStoreDown
}

// blockingIdentityStore blocks List until release is closed or ctx ends.
type blockingIdentityStore struct {
	store.IdentityStore
	entered chan struct{}
	release chan struct{}
}

func newBlockingIdentityStore(inner store.IdentityStore) *blockingIdentityStore {
	return &blockingIdentityStore{
		IdentityStore: inner,
		entered:       make(chan struct{}, 8),
		release:       make(chan struct{}),
	}
}

func (b *blockingIdentityStore) List(ctx context.Context, f store.IdentityFilter) ([]store.Identity, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.IdentityStore.List(ctx, f)
}

func mustCreate(t *testing.T, ids store.IdentityStore, id store.Identity) {
	t.Helper()
	if id.DisplayName == "" {
		id.DisplayName = id.IdentityID
	}
	if err := ids.Create(context.Background(), id); err != nil {
		t.Fatalf("Create %s: %v", id.IdentityID, err)
	}
}
