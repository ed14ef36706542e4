package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestSessionStore_OpenTwice_Conflict(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	if _, err := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodQR, At: t0}); err != nil {
		t.Fatalf("first open: %v", err)
	}
	_, err := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodFace, At: t0.Add(time.Second)})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if n := len(ss.Sessions()); n != 1 {
		t.Errorf("expected 1 session, got %d", n)
	}
}

func TestSessionStore_Close_ThenAlreadyClosed(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	sess, err := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodQR, At: t0})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	closed, err := ss.Close(ctx, store.CloseRequest{SessionID: sess.SessionID, Method: store.MethodFace, StationID: "gate-a", At: t0.Add(time.Minute)})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil || !closed.ClosedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("unexpected closed_at: %v", closed.ClosedAt)
	}
	if closed.CloseMethod != store.MethodFace || closed.ClosedBy != "gate-a" {
		t.Errorf("close metadata not recorded: %+v", closed)
	}

	_, err = ss.Close(ctx, store.CloseRequest{SessionID: sess.SessionID, At: t0.Add(2 * time.Minute)})
	if !errors.Is(err, store.ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}

	got, err := ss.Get(ctx, sess.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.ClosedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("second close must not overwrite closed_at, got %v", got.ClosedAt)
	}
}

func TestSessionStore_Close_Unknown_NotFound(t *testing.T) {
	ss := memory.NewSessionStore()
	_, err := ss.Close(context.Background(), store.CloseRequest{SessionID: "nope", At: t0})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionStore_Latest_PicksNewest(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	if _, ok, err := ss.Latest(ctx, "S1"); err != nil || ok {
		t.Fatalf("expected no session, got ok=%v err=%v", ok, err)
	}

	first, _ := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", At: t0})
	_, _ = ss.Close(ctx, store.CloseRequest{SessionID: first.SessionID, At: t0.Add(time.Hour)})
	second, _ := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", At: t0.Add(2 * time.Hour)})

	latest, ok, err := ss.Latest(ctx, "S1")
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.SessionID != second.SessionID {
		t.Errorf("expected latest=%s, got %s", second.SessionID, latest.SessionID)
	}
	if !latest.Open() {
		t.Error("expected latest session to be open")
	}
}

func TestSessionStore_Latest_PrefersOpenOverLaterClosed(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	// A station with a fast clock opened and closed at +100s/+106s; a
	// slower one then opened at +98s.
	fast, _ := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodQR, At: t0.Add(100 * time.Second)})
	_, _ = ss.Close(ctx, store.CloseRequest{SessionID: fast.SessionID, At: t0.Add(106 * time.Second)})
	slow, err := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodQR, At: t0.Add(98 * time.Second)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	latest, ok, err := ss.Latest(ctx, "S1")
	if err != nil || !ok {
		t.Fatalf("Latest: ok=%v err=%v", ok, err)
	}
	if latest.SessionID != slow.SessionID || !latest.Open() {
		t.Errorf("expected open session %s, got %+v", slow.SessionID, latest)
	}
}

func TestSessionStore_List_Filters(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	a, _ := ss.Open(ctx, store.OpenRequest{IdentityID: "A", At: t0})
	_, _ = ss.Open(ctx, store.OpenRequest{IdentityID: "B", At: t0.Add(time.Hour)})
	_, _ = ss.Close(ctx, store.CloseRequest{SessionID: a.SessionID, At: t0.Add(2 * time.Hour)})
	_, _ = ss.Open(ctx, store.OpenRequest{IdentityID: "C", At: t0.Add(24 * time.Hour)})

	day, _ := ss.List(ctx, store.SessionFilter{From: t0, To: t0.Add(24 * time.Hour)})
	if len(day) != 2 {
		t.Fatalf("expected 2 sessions in day, got %d", len(day))
	}
	if day[0].IdentityID != "B" {
		t.Errorf("expected newest first (B), got %s", day[0].IdentityID)
	}

	open, _ := ss.List(ctx, store.SessionFilter{OpenOnly: true})
	if len(open) != 2 {
		t.Errorf("expected 2 open sessions, got %d", len(open))
	}

	onlyA, _ := ss.List(ctx, store.SessionFilter{IdentityID: "A"})
	if len(onlyA) != 1 || onlyA[0].Open() {
		t.Errorf("unexpected sessions for A: %+v", onlyA)
	}

	limited, _ := ss.List(ctx, store.SessionFilter{Limit: 1})
	if len(limited) != 1 || limited[0].IdentityID != "C" {
		t.Errorf("unexpected limited listing: %+v", limited)
	}
}

func TestSessionStore_ConcurrentOpen_AtMostOneOpen(t *testing.T) {
	ss := memory.NewSessionStore()
	ctx := context.Background()

	const writers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ss.Open(ctx, store.OpenRequest{IdentityID: "S1", At: t0})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful open, got %d", successes)
	}
	open, _ := ss.List(ctx, store.SessionFilter{IdentityID: "S1", OpenOnly: true})
	if len(open) != 1 {
		t.Errorf("expected 1 open session, got %d", len(open))
	}
}
