package service

import (
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

type OutcomeKind string

const (
	OutcomeOpened       OutcomeKind = "opened"
	OutcomeClosed       OutcomeKind = "closed"
	OutcomeSuppressed   OutcomeKind = "suppressed"
	OutcomeUnrecognized OutcomeKind = "unrecognized"
	OutcomeConflict     OutcomeKind = "conflict"

	// OutcomeSkipped means a FACE frame arrived while the station was still
	// matching the previous one and was dropped unprocessed.
	OutcomeSkipped OutcomeKind = "skipped"
)

// Conflict reasons.
const (
	ReasonProcessedElsewhere = "already_processed_elsewhere"
	ReasonStateChanged       = "state_changed_elsewhere"
	ReasonRetryFailed        = "retry_failed"
)

// Outcome is the result of one trigger attempt at a station. Session is
// set for opened and closed; Identity is set whenever the signal resolved
// to an enrolled identity.
type Outcome struct {
	Kind       OutcomeKind
	StationID  string
	IdentityID string
	Method     store.Method
	Identity   store.Identity
	Session    store.Session
	Distance   float64 // FACE only
	Reason     string
	At         time.Time
}

// Transitioned reports whether the outcome committed a state change.
func (o Outcome) Transitioned() bool {
	return o.Kind == OutcomeOpened || o.Kind == OutcomeClosed
}
