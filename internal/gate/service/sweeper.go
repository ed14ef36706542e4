package service

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Sweepable drops debounce entries whose window has elapsed.
type Sweepable interface {
	Sweep(now time.Time) int
}

// DebounceSweeper periodically evicts expired debounce entries so a
// long-running station's guard stays bounded by the number of identities
// seen within one window. An interval of 0 disables sweeping.
type DebounceSweeper struct {
	target   Sweepable
	interval time.Duration
	clock    Clock
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewDebounceSweeper(target Sweepable, interval time.Duration, logger *log.Logger) *DebounceSweeper {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &DebounceSweeper{
		target:   target,
		interval: interval,
		clock:    time.Now,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the background loop. It exits when ctx is cancelled or
// Stop is called.
func (p *DebounceSweeper) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("debounce sweeper disabled")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	p.logger.Info("debounce sweeper started", "interval", p.interval)
}

// Stop signals the loop to exit and waits for it.
func (p *DebounceSweeper) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *DebounceSweeper) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *DebounceSweeper) sweep() {
	if n := p.target.Sweep(p.clock()); n > 0 {
		p.logger.Debug("debounce sweep", "evicted", n)
	}
}
