package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/match"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

var ErrInvalidSignal = errors.New("invalid signal")

// Clock returns the current time. Production code uses time.Now.
type Clock func() time.Time

type StationConfig struct {
	ID             string
	DebounceWindow time.Duration
	Matcher        match.Matcher
	Clock          Clock
}

type StationDependencies struct {
	Identities store.IdentityStore
	Sessions   store.SessionStore
	Logger     *log.Logger
}

// Station is one physical gate: a single scanning loop with its own
// debounce guard. Many stations may share the same stores.
type Station struct {
	id         string
	window     time.Duration
	matcher    match.Matcher
	clock      Clock
	identities store.IdentityStore
	sessions   store.SessionStore
	logger     *log.Logger
	outcomes   outcomeBroadcaster

	mu       sync.Mutex
	guard    *DebounceGuard
	resolver *Resolver
	ctx      context.Context
	cancel   context.CancelFunc

	// matching is set while a FACE frame is being matched.
	matching atomic.Bool
}

func NewStation(cfg StationConfig, deps StationDependencies) *Station {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Station{
		id:         cfg.ID,
		window:     cfg.DebounceWindow,
		matcher:    cfg.Matcher,
		clock:      cfg.Clock,
		identities: deps.Identities,
		sessions:   deps.Sessions,
		logger:     logger.With("station", cfg.ID),
	}
}

func (s *Station) ID() string { return s.id }

// Start begins a scanning session with a fresh debounce guard. Starting a
// station that is already scanning is a no-op.
func (s *Station) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard != nil {
		return
	}
	s.guard = NewDebounceGuard(s.window)
	s.resolver = NewResolver(s.guard, s.sessions, s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.logger.Info("scanning started", "debounce", s.guard.Window())
}

// Stop ends the scanning session: in-flight matching is cancelled, the
// debounce guard is cleared and subscriber channels are closed. Sessions
// already committed are left as is.
func (s *Station) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard == nil {
		return
	}
	s.cancel()
	s.guard.Reset()
	s.guard = nil
	s.resolver = nil
	s.ctx, s.cancel = nil, nil
	s.outcomes.closeAll()
	s.logger.Info("scanning stopped")
}

func (s *Station) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guard != nil
}

// Debounced returns the number of identities currently held by the guard.
func (s *Station) Debounced() int {
	s.mu.Lock()
	g := s.guard
	s.mu.Unlock()
	if g == nil {
		return 0
	}
	return g.Len()
}

// Sweep evicts expired debounce entries.
func (s *Station) Sweep(now time.Time) int {
	s.mu.Lock()
	g := s.guard
	s.mu.Unlock()
	if g == nil {
		return 0
	}
	return g.Sweep(now)
}

// Subscribe returns a channel receiving every outcome produced by this
// station and a function that unsubscribes and closes it. The channel is
// also closed when the station stops, and is returned already closed if it
// is not scanning. Slow subscribers miss outcomes rather than block the
// station.
func (s *Station) Subscribe(buffer int) (<-chan Outcome, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard == nil {
		ch := make(chan Outcome)
		close(ch)
		return ch, func() {}
	}
	return s.outcomes.add(buffer)
}

// HandleSignal resolves one capture signal. It returns ErrStationNotScanning
// unless the station has been started or when it stops mid-signal,
// ErrInvalidSignal for malformed input, and an error wrapping ErrTransient
// when a store cannot be read or written.
func (s *Station) HandleSignal(ctx context.Context, sig types.Signal) (Outcome, error) {
	method, ok := store.ParseMethod(sig.Kind)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSignal, sig.Kind)
	}

	s.mu.Lock()
	resolver, stationCtx := s.resolver, s.ctx
	s.mu.Unlock()
	if resolver == nil {
		return Outcome{}, ErrStationNotScanning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(stationCtx, cancel)
	defer stop()

	var (
		out Outcome
		err error
	)
	switch method {
	case store.MethodQR:
		out, err = s.handleQR(ctx, resolver, strings.TrimSpace(sig.Payload))
	case store.MethodFace:
		out, err = s.handleFace(ctx, resolver, sig.Descriptor)
	}
	if err != nil {
		if stationCtx.Err() != nil && errors.Is(err, context.Canceled) {
			return Outcome{}, ErrStationNotScanning
		}
		return Outcome{}, err
	}

	s.logger.Debug("signal resolved", "kind", method, "outcome", out.Kind, "identity", out.IdentityID)
	s.outcomes.send(out)
	return out, nil
}

func (s *Station) handleQR(ctx context.Context, resolver *Resolver, payload string) (Outcome, error) {
	if payload == "" {
		return Outcome{}, fmt.Errorf("%w: empty QR payload", ErrInvalidSignal)
	}

	ident, err := s.identities.Get(ctx, payload)
	if errors.Is(err, store.ErrNotFound) {
		return s.unrecognized(store.MethodQR, payload), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: lookup identity: %w", ErrTransient, err)
	}

	out, err := resolver.Trigger(ctx, ident.IdentityID, store.MethodQR, s.id, s.clock())
	if err != nil {
		return Outcome{}, err
	}
	out.Identity = ident
	return out, nil
}

func (s *Station) handleFace(ctx context.Context, resolver *Resolver, descriptor []float32) (Outcome, error) {
	if len(descriptor) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty FACE descriptor", ErrInvalidSignal)
	}
	if !s.matching.CompareAndSwap(false, true) {
		return Outcome{Kind: OutcomeSkipped, StationID: s.id, Method: store.MethodFace, At: s.clock()}, nil
	}
	defer s.matching.Store(false)

	candidates, err := s.identities.List(ctx, store.IdentityFilter{WithDescriptor: true})
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: list identities: %w", ErrTransient, err)
	}

	res, ok, err := s.matcher.Match(ctx, descriptor, candidates)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return s.unrecognized(store.MethodFace, ""), nil
	}

	out, err := resolver.Trigger(ctx, res.Identity.IdentityID, store.MethodFace, s.id, s.clock())
	if err != nil {
		return Outcome{}, err
	}
	out.Identity = res.Identity
	out.Distance = res.Distance
	return out, nil
}

func (s *Station) unrecognized(method store.Method, payload string) Outcome {
	s.logger.Info("unrecognized signal", "kind", method, "payload", payload)
	return Outcome{
		Kind:       OutcomeUnrecognized,
		StationID:  s.id,
		IdentityID: payload,
		Method:     method,
		At:         s.clock(),
	}
}

// FrameSource yields face descriptors from a camera pipeline. ok is false
// when no face is in view.
type FrameSource interface {
	NextFrame(ctx context.Context) (descriptor []float32, ok bool, err error)
}

type FrameSourceFunc func(ctx context.Context) ([]float32, bool, error)

func (f FrameSourceFunc) NextFrame(ctx context.Context) ([]float32, bool, error) { return f(ctx) }

// RunFrames pulls one frame per tick and resolves it, but only when no
// match is outstanding; ticks that arrive while matching are dropped. It
// returns when ctx is done, the station stops scanning, or the source
// fails.
func (s *Station) RunFrames(ctx context.Context, src FrameSource, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if !s.Scanning() {
			return ErrStationNotScanning
		}
		if s.matching.Load() {
			continue
		}

		desc, ok, err := src.NextFrame(ctx)
		if err != nil {
			return fmt.Errorf("next frame: %w", err)
		}
		if !ok {
			continue
		}

		_, err = s.HandleSignal(ctx, types.Signal{Kind: string(store.MethodFace), Descriptor: desc})
		switch {
		case err == nil:
		case errors.Is(err, ErrStationNotScanning):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.logger.Error("frame failed", "err", err)
		}
	}
}

type outcomeBroadcaster struct {
	mu        sync.RWMutex
	listeners []chan Outcome
}

func (b *outcomeBroadcaster) add(buffer int) (<-chan Outcome, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Outcome, buffer)
	b.mu.Lock()
	b.listeners = append(b.listeners, ch)
	b.mu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { b.remove(ch) }) }
}

func (b *outcomeBroadcaster) remove(ch chan Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// closeAll closes and drops every listener; their unsubscribe funcs become
// no-ops.
func (b *outcomeBroadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners {
		close(l)
	}
	b.listeners = nil
}

func (b *outcomeBroadcaster) send(o Outcome) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		select {
		case l <- o:
		default:
		}
	}
}
