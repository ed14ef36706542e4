package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

var (
	ErrInvalidStationID   = errors.New("station_id is required")
	ErrUnknownStation     = errors.New("station is not commissioned")
	ErrStationNotScanning = errors.New("station is not scanning")
)

// StationRegistry answers whether a station id is commissioned and keeps
// last-seen bookkeeping.
type StationRegistry struct {
	store store.StationStore
}

func NewStationRegistry(st store.StationStore) *StationRegistry {
	return &StationRegistry{store: st}
}

func (r *StationRegistry) IsKnown(ctx context.Context, stationID string) (bool, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, stationID)
}

func (r *StationRegistry) NoteSeen(ctx context.Context, stationID string, known bool) error {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, stationID, known, time.Now().UTC())
}

// Require trims stationID and fails unless it names a commissioned
// station. Unknown stations are still noted as seen.
func (r *StationRegistry) Require(ctx context.Context, stationID string) (string, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return "", ErrInvalidStationID
	}
	known, err := r.IsKnown(ctx, stationID)
	if err != nil {
		return "", err
	}
	_ = r.NoteSeen(ctx, stationID, known)
	if !known {
		return "", ErrUnknownStation
	}
	return stationID, nil
}

func (r *StationRegistry) List(ctx context.Context) ([]store.StationRecord, error) {
	return r.store.List(ctx)
}
