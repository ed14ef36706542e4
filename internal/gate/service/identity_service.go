package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

var (
	ErrInvalidIdentityID = errors.New("identity_id is required")
	ErrInvalidName       = errors.New("name is required")
	ErrInvalidDescriptor = errors.New("descriptor must contain only finite values")
)

// DefaultQRSize is the badge image edge length in pixels.
const DefaultQRSize = 256

// IdentityService handles enrollment: the identity record, its face
// descriptor and its QR badge.
type IdentityService struct {
	store  store.IdentityStore
	qrSize int
}

func NewIdentityService(st store.IdentityStore, qrSize int) *IdentityService {
	if qrSize <= 0 {
		qrSize = DefaultQRSize
	}
	return &IdentityService{store: st, qrSize: qrSize}
}

func (s *IdentityService) Create(ctx context.Context, req types.IdentityRequest) (store.Identity, error) {
	id, err := fromRequest(req)
	if err != nil {
		return store.Identity{}, err
	}
	now := time.Now().UTC()
	id.RegisteredAt, id.UpdatedAt = now, now
	if err := s.store.Create(ctx, id); err != nil {
		return store.Identity{}, err
	}
	return s.store.Get(ctx, id.IdentityID)
}

// Update rewrites the profile of identityID. The id itself is immutable and
// any id in req is ignored.
func (s *IdentityService) Update(ctx context.Context, identityID string, req types.IdentityRequest) (store.Identity, error) {
	req.IdentityID = identityID
	id, err := fromRequest(req)
	if err != nil {
		return store.Identity{}, err
	}
	id.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, id); err != nil {
		return store.Identity{}, err
	}
	return s.store.Get(ctx, id.IdentityID)
}

// SetDescriptor replaces the enrolled face descriptor. An empty descriptor
// removes face enrollment.
func (s *IdentityService) SetDescriptor(ctx context.Context, identityID string, descriptor []float32) (store.Identity, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return store.Identity{}, ErrInvalidIdentityID
	}
	for _, v := range descriptor {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return store.Identity{}, ErrInvalidDescriptor
		}
	}
	if len(descriptor) == 0 {
		descriptor = nil
	}
	if err := s.store.SetDescriptor(ctx, identityID, descriptor, time.Now().UTC()); err != nil {
		return store.Identity{}, err
	}
	return s.store.Get(ctx, identityID)
}

func (s *IdentityService) Delete(ctx context.Context, identityID string) error {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return ErrInvalidIdentityID
	}
	return s.store.Delete(ctx, identityID)
}

func (s *IdentityService) Get(ctx context.Context, identityID string) (store.Identity, error) {
	identityID = strings.TrimSpace(identityID)
	if identityID == "" {
		return store.Identity{}, ErrInvalidIdentityID
	}
	return s.store.Get(ctx, identityID)
}

// List returns identities ordered by id. A non-empty query keeps only those
// whose id or name contains it, ignoring case.
func (s *IdentityService) List(ctx context.Context, query string) ([]store.Identity, error) {
	all, err := s.store.List(ctx, store.IdentityFilter{})
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}
	out := all[:0]
	for _, id := range all {
		if matchesQuery(id.IdentityID, id.DisplayName, query) {
			out = append(out, id)
		}
	}
	return out, nil
}

// QRCode renders the badge for identityID as a PNG. The code encodes the
// identity id, which is what a gate scanner submits as a QR payload.
func (s *IdentityService) QRCode(ctx context.Context, identityID string) ([]byte, error) {
	id, err := s.Get(ctx, identityID)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(id.IdentityID, qrcode.Medium, s.qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

type ImportResult struct {
	Created int
	Updated int
	Failed  map[string]error
}

// Import upserts a roster: new ids are created, existing ids have their
// profile updated. Invalid entries are collected in Failed and do not stop
// the import. progress, if set, is called once per entry.
func (s *IdentityService) Import(ctx context.Context, roster []types.IdentityRequest, progress func()) (ImportResult, error) {
	res := ImportResult{Failed: make(map[string]error)}
	for i, req := range roster {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		key := strings.TrimSpace(req.IdentityID)
		if key == "" {
			key = fmt.Sprintf("#%d", i+1)
		}

		_, err := s.Create(ctx, req)
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, store.ErrDuplicate):
			if _, err := s.Update(ctx, key, req); err != nil {
				res.Failed[key] = err
			} else {
				res.Updated++
			}
		default:
			res.Failed[key] = err
		}

		if progress != nil {
			progress()
		}
	}
	return res, nil
}

type roster struct {
	Identities []types.IdentityRequest `yaml:"identities"`
}

// ParseRoster reads a YAML roster of the form
//
//	identities:
//	  - id: S1001
//	    name: Ada Lovelace
//	    department: Mathematics
func ParseRoster(r io.Reader) ([]types.IdentityRequest, error) {
	var doc roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return doc.Identities, nil
}

func fromRequest(req types.IdentityRequest) (store.Identity, error) {
	id := store.Identity{
		IdentityID:  strings.TrimSpace(req.IdentityID),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Department:  strings.TrimSpace(req.Department),
		Year:        strings.TrimSpace(req.Year),
		Phone:       strings.TrimSpace(req.Phone),
		Email:       strings.TrimSpace(req.Email),
		Status:      strings.TrimSpace(req.Status),
	}
	if id.IdentityID == "" {
		return store.Identity{}, ErrInvalidIdentityID
	}
	if id.DisplayName == "" {
		return store.Identity{}, ErrInvalidName
	}
	if id.Status == "" {
		id.Status = store.StatusActive
	}
	return id, nil
}

func matchesQuery(identityID, name, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(identityID), lowerQuery) ||
		strings.Contains(strings.ToLower(name), lowerQuery)
}
