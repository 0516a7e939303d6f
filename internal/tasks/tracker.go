package tasks

import (
	"context"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// Tracker keeps one [Poller] per active analysis in a listing.
//
// Each call to [Tracker.Sync] starts pollers for newly active analyses and stops pollers whose
// analysis is gone or no longer active. Pollers remove themselves on completion or error.
type Tracker struct {
	fetcher  Fetcher
	logger   *log.Logger
	pollOpts []PollerOption

	// OnUpdate receives every snapshot observed by any poller, including the terminal one.
	OnUpdate func(*models.Analysis)
	// OnError receives the error that ended an analysis' polling.
	OnError func(id string, err error)

	mu      sync.Mutex
	pollers map[string]*Poller
}

// NewTracker creates a tracker. pollOpts apply to every poller it starts.
func NewTracker(fetcher Fetcher, logger *log.Logger, pollOpts ...PollerOption) *Tracker {
	if logger == nil {
		logger = shared.NewDiscardLogger()
	}
	return &Tracker{
		fetcher:  fetcher,
		logger:   logger,
		pollOpts: append([]PollerOption{WithLogger(logger)}, pollOpts...),
		pollers:  make(map[string]*Poller),
	}
}

// Sync reconciles running pollers with analyses.
func (t *Tracker) Sync(ctx context.Context, analyses []models.Analysis) {
	active := make(map[string]bool, len(analyses))
	for _, a := range analyses {
		if a.Status.IsActive() {
			active[a.ID] = true
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for id, p := range t.pollers {
		if !active[id] {
			p.Stop()
			delete(t.pollers, id)
			t.logger.Debug("stopped tracking analysis", "id", id)
		}
	}

	for id := range active {
		if _, ok := t.pollers[id]; ok {
			continue
		}
		p := NewPoller(t.fetcher, id, t.pollOpts...)
		t.pollers[id] = p
		p.Start(ctx, t.callbacks(id, p))
		t.logger.Debug("tracking analysis", "id", id)
	}
}

func (t *Tracker) callbacks(id string, p *Poller) Callbacks {
	return Callbacks{
		OnUpdate: func(a *models.Analysis) {
			if t.OnUpdate != nil {
				t.OnUpdate(a)
			}
		},
		OnComplete: func(*models.Analysis) {
			t.forget(id, p)
		},
		OnError: func(err error) {
			t.forget(id, p)
			if t.OnError != nil {
				t.OnError(id, err)
			}
		},
	}
}

// forget drops id only if it still maps to p, so a replacement poller survives.
func (t *Tracker) forget(id string, p *Poller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollers[id] == p {
		delete(t.pollers, id)
	}
}

// Active returns the IDs currently being polled, sorted.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.pollers))
	for id := range t.pollers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// StopAll stops every poller.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, p := range t.pollers {
		p.Stop()
		delete(t.pollers, id)
	}
}
