package service

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/match"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

// StationObserver is told whenever a station starts or stops scanning.
type StationObserver interface {
	StationChanged(stationID string, scanning bool)
}

type ManagerConfig struct {
	DebounceWindow time.Duration
	Matcher        match.Matcher
	Clock          Clock
}

type ManagerDependencies struct {
	Registry   *StationRegistry
	Identities store.IdentityStore
	Sessions   store.SessionStore
	Logger     *log.Logger
	Observer   StationObserver
}

// StationManager owns the Station for every commissioned gate that has
// been started in this process.
type StationManager struct {
	cfg  ManagerConfig
	deps ManagerDependencies

	mu       sync.Mutex
	stations map[string]*Station
}

func NewStationManager(cfg ManagerConfig, deps ManagerDependencies) *StationManager {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	return &StationManager{
		cfg:      cfg,
		deps:     deps,
		stations: make(map[string]*Station),
	}
}

// Start begins scanning at a commissioned station, creating it on first use.
func (m *StationManager) Start(ctx context.Context, stationID string) (*Station, error) {
	id, err := m.deps.Registry.Require(ctx, stationID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	st, ok := m.stations[id]
	if !ok {
		st = NewStation(StationConfig{
			ID:             id,
			DebounceWindow: m.cfg.DebounceWindow,
			Matcher:        m.cfg.Matcher,
			Clock:          m.cfg.Clock,
		}, StationDependencies{
			Identities: m.deps.Identities,
			Sessions:   m.deps.Sessions,
			Logger:     m.deps.Logger,
		})
		m.stations[id] = st
	}
	m.mu.Unlock()

	st.Start()
	m.notify(id, true)
	return st, nil
}

// Stop ends scanning at a station. Stopping an idle station is not an error.
func (m *StationManager) Stop(ctx context.Context, stationID string) error {
	id, err := m.deps.Registry.Require(ctx, stationID)
	if err != nil {
		return err
	}
	if st, ok := m.Station(id); ok {
		st.Stop()
	}
	m.notify(id, false)
	return nil
}

// StopAll stops every station; used on shutdown.
func (m *StationManager) StopAll() {
	m.mu.Lock()
	stations := make([]*Station, 0, len(m.stations))
	for _, st := range m.stations {
		stations = append(stations, st)
	}
	m.mu.Unlock()

	for _, st := range stations {
		if st.Scanning() {
			st.Stop()
			m.notify(st.ID(), false)
		}
	}
}

func (m *StationManager) Station(stationID string) (*Station, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stations[stationID]
	return st, ok
}

// Signal routes a capture signal to its station.
func (m *StationManager) Signal(ctx context.Context, stationID string, sig types.Signal) (Outcome, error) {
	id, err := m.deps.Registry.Require(ctx, stationID)
	if err != nil {
		return Outcome{}, err
	}
	st, ok := m.Station(id)
	if !ok {
		return Outcome{}, ErrStationNotScanning
	}
	return st.HandleSignal(ctx, sig)
}

type StationStatus struct {
	StationID string
	Known     bool
	Scanning  bool
	Debounced int
	LastSeen  time.Time
}

// List reports every station the registry knows of or has seen, merged with
// in-process scanning state.
func (m *StationManager) List(ctx context.Context) ([]StationStatus, error) {
	recs, err := m.deps.Registry.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]StationStatus, 0, len(recs))
	listed := make(map[string]bool, len(recs))
	for _, r := range recs {
		status := StationStatus{StationID: r.StationID, Known: r.Known, LastSeen: r.LastSeen}
		if st, ok := m.Station(r.StationID); ok {
			status.Scanning = st.Scanning()
			status.Debounced = st.Debounced()
		}
		listed[r.StationID] = true
		out = append(out, status)
	}

	m.mu.Lock()
	var extra []StationStatus
	for id, st := range m.stations {
		if !listed[id] {
			extra = append(extra, StationStatus{StationID: id, Known: true, Scanning: st.Scanning(), Debounced: st.Debounced()})
		}
	}
	m.mu.Unlock()
	sort.Slice(extra, func(i, j int) bool { return extra[i].StationID < extra[j].StationID })

	return append(out, extra...), nil
}

// Sweep evicts expired debounce entries at every station.
func (m *StationManager) Sweep(now time.Time) int {
	m.mu.Lock()
	stations := make([]*Station, 0, len(m.stations))
	for _, st := range m.stations {
		stations = append(stations, st)
	}
	m.mu.Unlock()

	n := 0
	for _, st := range stations {
		n += st.Sweep(now)
	}
	return n
}

func (m *StationManager) notify(stationID string, scanning bool) {
	if m.deps.Observer != nil {
		m.deps.Observer.StationChanged(stationID, scanning)
	}
}
