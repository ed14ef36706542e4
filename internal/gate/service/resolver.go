package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
)

// ErrTransient wraps session store failures other than a lost race.
var ErrTransient = errors.New("session store unavailable")

// Resolver decides, per identity, whether a trigger opens or closes a
// session. Its read of the current state is not atomic with the write that
// follows; the store's conditional writes settle races between stations.
type Resolver struct {
	guard    *DebounceGuard
	sessions store.SessionStore
	logger   *log.Logger
}

func NewResolver(guard *DebounceGuard, sessions store.SessionStore, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{guard: guard, sessions: sessions, logger: logger}
}

// observation is what the resolver read for an identity: its most recent
// session, if any.
type observation struct {
	latest store.Session
	found  bool
}

func (o observation) inside() bool { return o.found && o.latest.Open() }

func (o observation) same(other observation) bool {
	if o.found != other.found {
		return false
	}
	if !o.found {
		return true
	}
	return o.latest.SessionID == other.latest.SessionID && o.latest.Open() == other.latest.Open()
}

// Trigger resolves one recognized signal for identityID at stationID.
//
// The debounce entry is recorded before the store is touched and is kept
// even if persistence fails. A lost race against another writer is
// re-decided once from a fresh read; store failures are returned wrapped in
// ErrTransient.
func (r *Resolver) Trigger(ctx context.Context, identityID string, method store.Method, stationID string, now time.Time) (Outcome, error) {
	base := Outcome{StationID: stationID, IdentityID: identityID, Method: method, At: now}

	if !r.guard.Admit(identityID, now) {
		base.Kind = OutcomeSuppressed
		return base, nil
	}

	seen, err := r.observe(ctx, identityID)
	if err != nil {
		return Outcome{}, err
	}

	out, err := r.transition(ctx, base, seen)
	if err == nil {
		return out, nil
	}
	if !lostRace(err) {
		return Outcome{}, fmt.Errorf("%w: %w", ErrTransient, err)
	}

	again, rerr := r.observe(ctx, identityID)
	if rerr != nil {
		return Outcome{}, rerr
	}

	if !again.same(seen) {
		base.Kind = OutcomeConflict
		base.Reason = ReasonStateChanged
		// Our intended transition already happened elsewhere.
		if again.inside() != seen.inside() {
			base.Reason = ReasonProcessedElsewhere
		}
		if again.found {
			base.Session = again.latest
		}
		r.logger.Warn("trigger conflict", "station", stationID, "identity", identityID, "reason", base.Reason)
		return base, nil
	}

	out, err = r.transition(ctx, base, again)
	if err == nil {
		return out, nil
	}
	if !lostRace(err) {
		return Outcome{}, fmt.Errorf("%w: %w", ErrTransient, err)
	}
	base.Kind = OutcomeConflict
	base.Reason = ReasonRetryFailed
	r.logger.Warn("trigger conflict", "station", stationID, "identity", identityID, "reason", base.Reason)
	return base, nil
}

func (r *Resolver) observe(ctx context.Context, identityID string) (observation, error) {
	latest, found, err := r.sessions.Latest(ctx, identityID)
	if err != nil {
		return observation{}, fmt.Errorf("%w: latest session: %w", ErrTransient, err)
	}
	return observation{latest: latest, found: found}, nil
}

func (r *Resolver) transition(ctx context.Context, base Outcome, seen observation) (Outcome, error) {
	if !seen.inside() {
		sess, err := r.sessions.Open(ctx, store.OpenRequest{
			IdentityID: base.IdentityID,
			Method:     base.Method,
			StationID:  base.StationID,
			At:         base.At,
		})
		if err != nil {
			return Outcome{}, err
		}
		r.logger.Info("session opened", "station", base.StationID, "identity", base.IdentityID,
			"method", base.Method, "session", sess.SessionID)
		base.Kind = OutcomeOpened
		base.Session = sess
		return base, nil
	}

	sess, err := r.sessions.Close(ctx, store.CloseRequest{
		SessionID: seen.latest.SessionID,
		Method:    base.Method,
		StationID: base.StationID,
		At:        base.At,
	})
	if err != nil {
		return Outcome{}, err
	}
	r.logger.Info("session closed", "station", base.StationID, "identity", base.IdentityID,
		"method", base.Method, "session", sess.SessionID, "duration", sess.Duration())
	base.Kind = OutcomeClosed
	base.Session = sess
	return base, nil
}

func lostRace(err error) bool {
	return errors.Is(err, store.ErrConflict) ||
		errors.Is(err, store.ErrAlreadyClosed) ||
		errors.Is(err, store.ErrNotFound)
}
