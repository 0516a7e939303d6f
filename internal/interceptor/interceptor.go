package interceptor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/shared"
)

const defaultMaxAttempts = 1

// RequestFunc performs one backend call. It is invoked again on replay, so it must be safe to repeat.
type RequestFunc func(ctx context.Context) error

// Refresher re-validates the session. A nil error means requests may be replayed.
type Refresher func(ctx context.Context) error

// Options flags a single call.
type Options struct {
	// SkipAuth passes 401s through untouched. Used for login, register, and the silent session check.
	SkipAuth bool
	// IsRetry marks a replay after a refresh; a second 401 is returned as-is.
	IsRetry bool
}

// Interceptor wraps backend calls with session-expiry handling.
type Interceptor struct {
	refresher   Refresher
	onExpired   func()
	maxAttempts int
	logger      *log.Logger

	mu         sync.Mutex
	refreshing bool
	attempts   int
	expired    bool
	queue      []*queuedRequest
}

// queuedRequest is a caller waiting on an in-flight refresh.
type queuedRequest struct {
	fn   RequestFunc
	done chan outcome
}

type outcome struct {
	replay bool
	err    error
}

// Option configures an [Interceptor].
type Option func(*Interceptor)

// WithRefresher sets the function used to re-validate the session on a 401.
func WithRefresher(r Refresher) Option {
	return func(i *Interceptor) { i.refresher = r }
}

// WithSessionExpired sets the hook invoked when a refresh window ends the session.
//
// Later expiries are not reported again until a request succeeds.
func WithSessionExpired(fn func()) Option {
	return func(i *Interceptor) { i.onExpired = fn }
}

// WithMaxAttempts bounds consecutive refresh attempts. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(i *Interceptor) {
		if n > 0 {
			i.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(i *Interceptor) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an interceptor. Instances share no state.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		maxAttempts: defaultMaxAttempts,
		logger:      shared.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetSessionExpired replaces the expiry hook.
func (i *Interceptor) SetSessionExpired(fn func()) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onExpired = fn
}

// Do runs fn and handles a 401 according to opts.
//
// A caller arriving while a refresh is in flight blocks until the refresh settles or ctx is done.
func (i *Interceptor) Do(ctx context.Context, opts Options, fn RequestFunc) error {
	err := fn(ctx)
	if err == nil {
		i.mu.Lock()
		i.attempts = 0
		i.expired = false
		i.mu.Unlock()
		return nil
	}

	if !IsUnauthorized(err) || opts.SkipAuth || opts.IsRetry {
		return err
	}

	i.mu.Lock()
	if i.refreshing {
		q := &queuedRequest{fn: fn, done: make(chan outcome, 1)}
		i.queue = append(i.queue, q)
		i.mu.Unlock()
		return i.wait(ctx, q)
	}
	if i.attempts >= i.maxAttempts {
		i.mu.Unlock()
		return err
	}
	i.refreshing = true
	i.attempts++
	i.mu.Unlock()

	return i.refresh(ctx, fn)
}

func (i *Interceptor) wait(ctx context.Context, q *queuedRequest) error {
	select {
	case res := <-q.done:
		if !res.replay {
			return res.err
		}
		return i.Do(ctx, Options{IsRetry: true}, q.fn)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh owns the refresh window opened by the caller of Do.
func (i *Interceptor) refresh(ctx context.Context, fn RequestFunc) error {
	refreshed := false
	if i.refresher != nil {
		// One caller giving up must not end the session for every queued caller.
		if err := i.refresher(context.WithoutCancel(ctx)); err != nil {
			i.logger.Warn("session refresh failed", "error", err)
		} else {
			refreshed = true
		}
	}

	i.mu.Lock()
	queue := i.queue
	i.queue = nil
	i.refreshing = false
	i.attempts = 0
	onExpired := i.onExpired
	report := !refreshed && !i.expired
	i.expired = !refreshed
	i.mu.Unlock()

	if !refreshed {
		for _, q := range queue {
			q.done <- outcome{err: shared.ErrSessionExpired}
		}
		if report {
			i.logger.Info("session expired", "rejected", len(queue))
			if onExpired != nil {
				onExpired()
			}
		}
		return shared.ErrSessionExpired
	}

	for _, q := range queue {
		q.done <- outcome{replay: true}
	}
	i.logger.Debug("session refreshed", "replayed", len(queue))
	return i.Do(ctx, Options{IsRetry: true}, fn)
}

// Refreshing reports whether a refresh window is open.
func (i *Interceptor) Refreshing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.refreshing
}

// Attempts returns the current refresh attempt count.
func (i *Interceptor) Attempts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attempts
}

// Queued returns the number of callers waiting on the open refresh window.
func (i *Interceptor) Queued() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}

// Call runs fn through the interceptor and returns its value.
func Call[T any](ctx context.Context, i *Interceptor, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := i.Do(ctx, opts, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// IsUnauthorized reports whether err is an authentication failure.
//
// Besides [shared.ErrUnauthorized], errors whose message mentions "401" or "Unauthorized" qualify.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrUnauthorized) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "401") || strings.Contains(msg, "Unauthorized")
}
