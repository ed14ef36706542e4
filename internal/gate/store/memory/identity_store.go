package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// IdentityStore keeps enrollment records in a map. It is intended for
// tests, dev runs and the memory backend.
type IdentityStore struct {
	mu   sync.RWMutex
	data map[string]store.Identity
}

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{data: make(map[string]store.Identity)}
}

func (s *IdentityStore) Create(_ context.Context, id store.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id.IdentityID]; ok {
		return store.ErrDuplicate
	}
	if id.RegisteredAt.IsZero() {
		id.RegisteredAt = time.Now().UTC()
	}
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = id.RegisteredAt
	}
	id.Descriptor = cloneVector(id.Descriptor)
	s.data[id.IdentityID] = id
	return nil
}

func (s *IdentityStore) Update(_ context.Context, id store.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[id.IdentityID]
	if !ok {
		return store.ErrNotFound
	}
	cur.DisplayName = id.DisplayName
	cur.Department = id.Department
	cur.Year = id.Year
	cur.Phone = id.Phone
	cur.Email = id.Email
	cur.Status = id.Status
	cur.UpdatedAt = id.UpdatedAt
	if cur.UpdatedAt.IsZero() {
		cur.UpdatedAt = time.Now().UTC()
	}
	s.data[id.IdentityID] = cur
	return nil
}

func (s *IdentityStore) SetDescriptor(_ context.Context, identityID string, descriptor []float32, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[identityID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Descriptor = cloneVector(descriptor)
	cur.UpdatedAt = at
	s.data[identityID] = cur
	return nil
}

func (s *IdentityStore) Delete(_ context.Context, identityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[identityID]; !ok {
		return store.ErrNotFound
	}
	delete(s.data, identityID)
	return nil
}

func (s *IdentityStore) Get(_ context.Context, identityID string) (store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.data[identityID]
	if !ok {
		return store.Identity{}, store.ErrNotFound
	}
	id.Descriptor = cloneVector(id.Descriptor)
	return id, nil
}

// List returns identities ordered by id.
func (s *IdentityStore) List(_ context.Context, f store.IdentityFilter) ([]store.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Identity, 0, len(s.data))
	for _, id := range s.data {
		if f.WithDescriptor && !id.HasDescriptor() {
			continue
		}
		id.Descriptor = cloneVector(id.Descriptor)
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityID < out[j].IdentityID })
	return out, nil
}

func cloneVector(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
