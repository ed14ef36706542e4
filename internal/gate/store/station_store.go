package store

import (
	"context"
	"time"
)

type StationRecord struct {
	StationID string
	Known     bool
	LastSeen  time.Time
}

// StationStore tracks which gate stations are commissioned.
type StationStore interface {
	IsKnown(ctx context.Context, stationID string) (bool, error)
	MarkSeen(ctx context.Context, stationID string, known bool, t time.Time) error
	List(ctx context.Context) ([]StationRecord, error)
}
