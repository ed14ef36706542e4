package memory_test

import (
	"context"
	"testing"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store/memory"
)

func TestStationStore_KnownFirstThenSeen(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStationStore([]string{" south ", "north", ""})

	for _, id := range []string{"north", "south"} {
		if ok, _ := s.IsKnown(ctx, id); !ok {
			t.Errorf("%s should be known", id)
		}
	}
	if ok, _ := s.IsKnown(ctx, "rogue"); ok {
		t.Error("rogue should be unknown")
	}

	if err := s.MarkSeen(ctx, "rogue", false, t0); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := s.MarkSeen(ctx, "north", true, t0); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"north", "south", "rogue"}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, id := range want {
		if recs[i].StationID != id {
			t.Errorf("recs[%d] = %s, want %s", i, recs[i].StationID, id)
		}
	}
	if !recs[0].LastSeen.Equal(t0) || !recs[1].LastSeen.IsZero() || recs[2].Known {
		t.Errorf("unexpected records %+v", recs)
	}
}
