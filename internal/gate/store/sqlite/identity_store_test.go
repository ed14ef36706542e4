package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

func TestIdentityStore_CreateAndGet_WithDescriptor(t *testing.T) {
	_, is, _ := newTestStores(t)
	ctx := context.Background()

	desc := []float32{0.25, -0.5, 1.0}
	err := is.Create(ctx, store.Identity{
		IdentityID:   "S1",
		DisplayName:  "Ada Lovelace",
		Department:   "CS",
		Year:         "3",
		Descriptor:   desc,
		RegisteredAt: t0,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := is.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DisplayName != "Ada Lovelace" || got.Status != store.StatusActive {
		t.Errorf("unexpected identity: %+v", got)
	}
	if len(got.Descriptor) != 3 || got.Descriptor[1] != -0.5 {
		t.Errorf("descriptor did not round-trip: %v", got.Descriptor)
	}
	if !got.RegisteredAt.Equal(t0) {
		t.Errorf("expected registered_at %v, got %v", t0, got.RegisteredAt)
	}
}

func TestIdentityStore_Create_Duplicate(t *testing.T) {
	_, is, _ := newTestStores(t)
	ctx := context.Background()

	_ = is.Create(ctx, store.Identity{IdentityID: "S1", DisplayName: "Ada"})
	err := is.Create(ctx, store.Identity{IdentityID: "S1", DisplayName: "Again"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdentityStore_SetDescriptor_ReplacesAndClears(t *testing.T) {
	_, is, _ := newTestStores(t)
	ctx := context.Background()

	_ = is.Create(ctx, store.Identity{IdentityID: "S1", DisplayName: "Ada", Descriptor: []float32{1, 2}})

	if err := is.SetDescriptor(ctx, "S1", []float32{3, 4, 5}, t0.Add(time.Hour)); err != nil {
		t.Fatalf("SetDescriptor: %v", err)
	}
	got, _ := is.Get(ctx, "S1")
	if len(got.Descriptor) != 3 || got.Descriptor[0] != 3 {
		t.Errorf("expected replaced descriptor, got %v", got.Descriptor)
	}

	if err := is.SetDescriptor(ctx, "S1", nil, t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("SetDescriptor clear: %v", err)
	}
	got, _ = is.Get(ctx, "S1")
	if got.HasDescriptor() {
		t.Errorf("expected descriptor cleared, got %v", got.Descriptor)
	}

	if err := is.SetDescriptor(ctx, "ghost", []float32{1}, t0); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing identity, got %v", err)
	}
}

func TestIdentityStore_List_WithDescriptorFilter(t *testing.T) {
	_, is, _ := newTestStores(t)
	ctx := context.Background()

	_ = is.Create(ctx, store.Identity{IdentityID: "B", DisplayName: "Bo", Descriptor: []float32{1}})
	_ = is.Create(ctx, store.Identity{IdentityID: "A", DisplayName: "Al"})

	all, err := is.List(ctx, store.IdentityFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].IdentityID != "A" {
		t.Fatalf("unexpected listing: %+v", all)
	}

	faces, _ := is.List(ctx, store.IdentityFilter{WithDescriptor: true})
	if len(faces) != 1 || faces[0].IdentityID != "B" {
		t.Errorf("expected only B, got %+v", faces)
	}
}

func TestIdentityStore_Delete_KeepsSessions(t *testing.T) {
	conn, is, ss := newTestStores(t)
	ctx := context.Background()

	_ = is.Create(ctx, store.Identity{IdentityID: "S1", DisplayName: "Ada"})
	_, _ = ss.Open(ctx, store.OpenRequest{IdentityID: "S1", Method: store.MethodQR, At: t0})

	if err := is.Delete(ctx, "S1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := is.Get(ctx, "S1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	var n int
	_ = conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE identity_id = 'S1'`).Scan(&n)
	if n != 1 {
		t.Errorf("sessions must survive identity removal, got %d rows", n)
	}

	if err := is.Delete(ctx, "S1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestIdentityStore_Update(t *testing.T) {
	_, is, _ := newTestStores(t)
	ctx := context.Background()

	_ = is.Create(ctx, store.Identity{IdentityID: "S1", DisplayName: "Ada", Descriptor: []float32{1}})
	err := is.Update(ctx, store.Identity{IdentityID: "S1", DisplayName: "Ada L.", Email: "ada@example.edu", Status: "Suspended"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := is.Get(ctx, "S1")
	if got.DisplayName != "Ada L." || got.Email != "ada@example.edu" || got.Status != "Suspended" {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.HasDescriptor() {
		t.Error("Update must not clear the descriptor")
	}

	if err := is.Update(ctx, store.Identity{IdentityID: "ghost", DisplayName: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
