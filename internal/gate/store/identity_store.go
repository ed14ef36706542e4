package store

import (
	"context"
	"time"
)

// StatusActive is the default enrollment status.
const StatusActive = "Active"

// Identity is an enrolled person. IdentityID doubles as the QR payload.
// A nil Descriptor means the identity can only pass through QR scans.
type Identity struct {
	IdentityID   string
	DisplayName  string
	Department   string
	Year         string
	Phone        string
	Email        string
	Status       string
	Descriptor   []float32
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// HasDescriptor reports whether a face descriptor is enrolled.
func (i Identity) HasDescriptor() bool { return len(i.Descriptor) > 0 }

type IdentityFilter struct {
	// WithDescriptor restricts the listing to face-enrolled identities.
	WithDescriptor bool
}

// IdentityStore owns enrollment records. Update never touches the
// descriptor; SetDescriptor replaces it (nil clears it).
type IdentityStore interface {
	Create(ctx context.Context, id Identity) error
	Update(ctx context.Context, id Identity) error
	SetDescriptor(ctx context.Context, identityID string, descriptor []float32, at time.Time) error
	Delete(ctx context.Context, identityID string) error
	Get(ctx context.Context, identityID string) (Identity, error)
	List(ctx context.Context, f IdentityFilter) ([]Identity, error)
}
