package service_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

func newTestIdentityService() *service.IdentityService {
	return service.NewIdentityService(memory.NewIdentityStore(), 128)
}

func TestIdentityService_CreateValidates(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, types.IdentityRequest{DisplayName: "Ada"}); !errors.Is(err, service.ErrInvalidIdentityID) {
		t.Errorf("expected ErrInvalidIdentityID, got %v", err)
	}
	if _, err := svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "  "}); !errors.Is(err, service.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	id, err := svc.Create(ctx, types.IdentityRequest{IdentityID: " S1 ", DisplayName: "Ada", Department: "Math"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id.IdentityID != "S1" || id.Status != store.StatusActive || id.RegisteredAt.IsZero() {
		t.Fatalf("unexpected identity %+v", id)
	}

	if _, err := svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "Other"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdentityService_UpdateKeepsIDAndDescriptor(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "Ada"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.SetDescriptor(ctx, "S1", []float32{0.1, 0.2}); err != nil {
		t.Fatalf("SetDescriptor: %v", err)
	}

	got, err := svc.Update(ctx, "S1", types.IdentityRequest{IdentityID: "S2", DisplayName: "Ada King", Year: "3"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.IdentityID != "S1" || got.DisplayName != "Ada King" || got.Year != "3" {
		t.Fatalf("unexpected identity %+v", got)
	}
	if !got.HasDescriptor() {
		t.Fatal("profile update must keep the descriptor")
	}
	if _, err := svc.Get(ctx, "S2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("S2 must not exist, got %v", err)
	}

	if _, err := svc.Update(ctx, "missing", types.IdentityRequest{DisplayName: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityService_SetDescriptor(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()
	svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "Ada"})

	nan := float32(math.NaN())
	if _, err := svc.SetDescriptor(ctx, "S1", []float32{0, nan}); !errors.Is(err, service.ErrInvalidDescriptor) {
		t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
	}

	got, err := svc.SetDescriptor(ctx, "S1", []float32{})
	if err != nil {
		t.Fatalf("clear descriptor: %v", err)
	}
	if got.HasDescriptor() {
		t.Fatal("empty descriptor must clear face enrollment")
	}
}

func TestIdentityService_ListSearch(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()
	for _, r := range []types.IdentityRequest{
		{IdentityID: "S1001", DisplayName: "Ada Lovelace"},
		{IdentityID: "S1002", DisplayName: "Alan Turing"},
		{IdentityID: "T0001", DisplayName: "Grace Hopper"},
	} {
		if _, err := svc.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	cases := map[string]int{"": 3, "s100": 2, "TURING": 1, "zzz": 0}
	for q, want := range cases {
		got, err := svc.List(ctx, q)
		if err != nil {
			t.Fatalf("List(%q): %v", q, err)
		}
		if len(got) != want {
			t.Errorf("List(%q) returned %d, want %d", q, len(got), want)
		}
	}
}

func TestIdentityService_QRCodeIsPNG(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()

	if _, err := svc.QRCode(ctx, "S1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "Ada"})
	png, err := svc.QRCode(ctx, "S1")
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("expected PNG signature")
	}
}

func TestIdentityService_ImportUpserts(t *testing.T) {
	svc := newTestIdentityService()
	ctx := context.Background()
	svc.Create(ctx, types.IdentityRequest{IdentityID: "S1", DisplayName: "Old Name"})

	roster, err := service.ParseRoster(strings.NewReader(`
identities:
  - id: S1
    name: Ada Lovelace
    department: Mathematics
  - id: S2
    name: Alan Turing
  - id: S3
`))
	if err != nil {
		t.Fatalf("ParseRoster: %v", err)
	}
	if len(roster) != 3 {
		t.Fatalf("parsed %d entries, want 3", len(roster))
	}

	var ticks int
	res, err := svc.Import(ctx, roster, func() { ticks++ })
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Created != 1 || res.Updated != 1 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !errors.Is(res.Failed["S3"], service.ErrInvalidName) {
		t.Fatalf("S3 failure = %v", res.Failed["S3"])
	}
	if ticks != 3 {
		t.Fatalf("progress called %d times, want 3", ticks)
	}

	got, _ := svc.Get(ctx, "S1")
	if got.DisplayName != "Ada Lovelace" || got.Department != "Mathematics" {
		t.Fatalf("S1 not updated: %+v", got)
	}
}

func TestParseRoster_RejectsUnknownFields(t *testing.T) {
	_, err := service.ParseRoster(strings.NewReader("identities:\n  - id: S1\n    nmae: typo\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}

	roster, err := service.ParseRoster(strings.NewReader(""))
	if err != nil || len(roster) != 0 {
		t.Fatalf("empty roster: %v %v", roster, err)
	}
}
