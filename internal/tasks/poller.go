package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// DefaultInterval is the delay between status fetches.
const DefaultInterval = 2 * time.Second

// Fetcher loads the current snapshot of an analysis.
type Fetcher interface {
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
}

// Ticker is the tick source a [Poller] waits on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a [Ticker] firing every d.
type TickerFunc func(d time.Duration) Ticker

type clockTicker struct{ t *time.Ticker }

func (c clockTicker) C() <-chan time.Time { return c.t.C }
func (c clockTicker) Stop()               { c.t.Stop() }

// NewClockTicker is the default [TickerFunc], backed by [time.Ticker].
func NewClockTicker(d time.Duration) Ticker {
	return clockTicker{t: time.NewTicker(d)}
}

// Callbacks receive poll results. Nil callbacks are skipped.
type Callbacks struct {
	OnUpdate   func(*models.Analysis)
	OnComplete func(*models.Analysis)
	OnError    func(error)
}

// Poller repeatedly fetches one analysis until it reaches a terminal status.
//
// The first fetch happens one interval after [Poller.Start]. A fetch error ends polling.
type Poller struct {
	fetcher   Fetcher
	id        string
	interval  time.Duration
	newTicker TickerFunc
	logger    *log.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// PollerOption configures a [Poller].
type PollerOption func(*Poller)

// WithInterval sets the delay between fetches. Non-positive values keep the default.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTicker replaces the tick source.
func WithTicker(fn TickerFunc) PollerOption {
	return func(p *Poller) {
		if fn != nil {
			p.newTicker = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates a poller for analysis id.
func NewPoller(fetcher Fetcher, id string, opts ...PollerOption) *Poller {
	p := &Poller{
		fetcher:   fetcher,
		id:        id,
		interval:  DefaultInterval,
		newTicker: NewClockTicker,
		logger:    shared.NewDiscardLogger(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the analysis being polled.
func (p *Poller) ID() string { return p.id }

// Interval returns the delay between fetches.
func (p *Poller) Interval() time.Duration { return p.interval }

// Start begins polling in a new goroutine. Calls after the first, or after [Poller.Stop], do nothing.
//
// Each fetch receives a context derived from ctx that Stop cancels, so a response arriving
// after Stop is dropped without invoking any callback.
func (p *Poller) Start(ctx context.Context, cb Callbacks) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	ticker := p.newTicker(p.interval)

	p.logger.Debug("poller started", "analysis", p.id, "interval", p.interval)
	go p.run(ctx, ticker, cb)
}

// Stop halts polling. It is safe to call more than once and from within callbacks.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true

	if p.cancel != nil {
		p.cancel()
	} else {
		close(p.done)
	}
	p.logger.Debug("poller stopped", "analysis", p.id)
}

// Stopped reports whether [Poller.Stop] has been called.
func (p *Poller) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// Done is closed once the polling goroutine has exited, or on Stop if polling never started.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) run(ctx context.Context, ticker Ticker, cb Callbacks) {
	defer close(p.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-ticker.C():
		}

		analysis, err := p.fetcher.GetAnalysis(ctx, p.id)
		if ctx.Err() != nil {
			p.logger.Debug("discarding poll result after stop", "analysis", p.id)
			p.Stop()
			return
		}

		if err != nil {
			p.logger.Warn("poll failed", "analysis", p.id, "error", err)
			if cb.OnError != nil {
				cb.OnError(err)
			}
			p.Stop()
			return
		}

		if cb.OnUpdate != nil {
			cb.OnUpdate(analysis)
		}

		if analysis.Status.IsTerminal() {
			p.Stop()
			if cb.OnComplete != nil {
				cb.OnComplete(analysis)
			}
			return
		}

		if p.Stopped() {
			return
		}
	}
}
