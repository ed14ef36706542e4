package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

type StationStore struct {
	mu    sync.RWMutex
	known map[string]struct{}
	seen  map[string]time.Time
}

func NewStationStore(knownStations []string) *StationStore {
	k := make(map[string]struct{}, len(knownStations))
	for _, st := range knownStations {
		st = strings.TrimSpace(st)
		if st != "" {
			k[st] = struct{}{}
		}
	}
	return &StationStore{
		known: k,
		seen:  make(map[string]time.Time),
	}
}

func (s *StationStore) IsKnown(_ context.Context, stationID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[stationID]
	return ok, nil
}

func (s *StationStore) MarkSeen(_ context.Context, stationID string, _ bool, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[stationID] = t
	return nil
}

// List returns known stations first, then stations that were seen but
// never commissioned, each group sorted by id.
func (s *StationStore) List(_ context.Context) ([]store.StationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.StationRecord, 0, len(s.known)+len(s.seen))
	for id := range s.known {
		out = append(out, store.StationRecord{StationID: id, Known: true, LastSeen: s.seen[id]})
	}
	for id, t := range s.seen {
		if _, ok := s.known[id]; ok {
			continue
		}
		out = append(out, store.StationRecord{StationID: id, LastSeen: t})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Known != out[j].Known {
			return out[i].Known
		}
		return out[i].StationID < out[j].StationID
	})
	return out, nil
}
