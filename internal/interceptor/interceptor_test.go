package interceptor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/perc/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnauthorized = fmt.Errorf("%w: Not authenticated", shared.ErrUnauthorized)

func unauthorized(context.Context) error { return errUnauthorized }

func TestIsUnauthorized(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", shared.ErrUnauthorized, true},
		{"wrapped sentinel", fmt.Errorf("call failed: %w", shared.ErrUnauthorized), true},
		{"status in message", errors.New("Request failed with status 401"), true},
		{"reason in message", errors.New("Unauthorized"), true},
		{"not found", shared.ErrNotFound, false},
		{"session expired", shared.ErrSessionExpired, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsUnauthorized(tc.err))
		})
	}
}

func TestInterceptor(t *testing.T) {
	ctx := context.Background()

	t.Run("Success Resets Attempts", func(t *testing.T) {
		i := New()
		i.attempts = 1

		require.NoError(t, i.Do(ctx, Options{}, func(context.Context) error { return nil }))
		assert.Equal(t, 0, i.Attempts())
	})

	t.Run("Non Auth Error Passes Through", func(t *testing.T) {
		expired := 0
		i := New(WithSessionExpired(func() { expired++ }))

		err := i.Do(ctx, Options{}, func(context.Context) error { return shared.ErrNotFound })
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, 0, expired)
	})

	t.Run("SkipAuth Passes 401 Through", func(t *testing.T) {
		expired := 0
		i := New(WithSessionExpired(func() { expired++ }))

		err := i.Do(ctx, Options{SkipAuth: true}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
		assert.Equal(t, 0, expired)
		assert.False(t, i.Refreshing())
	})

	t.Run("IsRetry Returns 401 Immediately", func(t *testing.T) {
		var refreshes, expired int
		i := New(
			WithRefresher(func(context.Context) error { refreshes++; return nil }),
			WithSessionExpired(func() { expired++ }),
		)

		err := i.Do(ctx, Options{IsRetry: true}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
		assert.Equal(t, 0, refreshes)
		assert.Equal(t, 0, expired)
		assert.Equal(t, 0, i.Attempts())
	})

	t.Run("Attempt Cap Returns 401 Unchanged", func(t *testing.T) {
		var refreshes int
		i := New(WithRefresher(func(context.Context) error { refreshes++; return nil }))
		i.attempts = 1

		err := i.Do(ctx, Options{}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
		assert.Equal(t, 0, refreshes)
	})

	t.Run("No Refresher Means Session Expired", func(t *testing.T) {
		expired := 0
		i := New(WithSessionExpired(func() { expired++ }))

		err := i.Do(ctx, Options{}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrSessionExpired)
		assert.Equal(t, "Session expired", err.Error())
		assert.Equal(t, 1, expired)
		assert.False(t, i.Refreshing())
		assert.Equal(t, 0, i.Attempts())
		assert.Equal(t, 0, i.Queued())

		err = i.Do(ctx, Options{}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrSessionExpired, "counter resets after each window")
		assert.Equal(t, 1, expired, "repeated expiry is reported once")

		require.NoError(t, i.Do(ctx, Options{}, func(context.Context) error { return nil }))
		err = i.Do(ctx, Options{}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrSessionExpired)
		assert.Equal(t, 2, expired, "a success re-arms the hook")
	})

	t.Run("Concurrent Expiries Report Once", func(t *testing.T) {
		const callers = 64
		var expired atomic.Int32
		i := New(WithSessionExpired(func() { expired.Add(1) }))

		var wg sync.WaitGroup
		errs := make(chan error, callers)
		start := make(chan struct{})
		for k := 0; k < callers; k++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				errs <- i.Do(ctx, Options{}, unauthorized)
			}()
		}
		close(start)
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.ErrorIs(t, err, shared.ErrSessionExpired)
		}
		assert.Equal(t, int32(1), expired.Load())
		assert.False(t, i.Refreshing())
		assert.Equal(t, 0, i.Queued())
	})

	t.Run("Refresh Success Retries Initiator", func(t *testing.T) {
		var calls int
		i := New(WithRefresher(func(context.Context) error { return nil }))

		got, err := Call(ctx, i, Options{}, func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", errUnauthorized
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 0, i.Attempts())
	})

	t.Run("Refresh Success But Retry Still 401", func(t *testing.T) {
		var calls, refreshes int
		i := New(WithRefresher(func(context.Context) error { refreshes++; return nil }))

		err := i.Do(ctx, Options{}, func(context.Context) error { calls++; return errUnauthorized })
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
		assert.Equal(t, 2, calls)
		assert.Equal(t, 1, refreshes)
	})

	t.Run("Refresh Failure Expires Session", func(t *testing.T) {
		expired := 0
		i := New(
			WithRefresher(func(context.Context) error { return errors.New("refresh endpoint down") }),
			WithSessionExpired(func() { expired++ }),
		)

		err := i.Do(ctx, Options{}, unauthorized)
		assert.ErrorIs(t, err, shared.ErrSessionExpired)
		assert.Equal(t, 1, expired)
	})

	t.Run("Call Returns Zero Value On Error", func(t *testing.T) {
		i := New()
		got, err := Call(ctx, i, Options{}, func(context.Context) (int, error) { return 7, shared.ErrNotFound })
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, 0, got)
	})
}

// blockingRefresher returns a refresher that blocks until release is closed, then returns result.
func blockingRefresher(calls *atomic.Int32, release <-chan struct{}, result error) Refresher {
	return func(context.Context) error {
		calls.Add(1)
		<-release
		return result
	}
}

func TestInterceptorConcurrency(t *testing.T) {
	ctx := context.Background()
	const n = 8

	// startWindow opens a refresh window with one initiator, then queues n-1 more 401s behind it.
	startWindow := func(t *testing.T, i *Interceptor, fn func(int) RequestFunc) []chan error {
		t.Helper()
		results := make([]chan error, n)
		for k := range results {
			results[k] = make(chan error, 1)
		}

		go func() { results[0] <- i.Do(ctx, Options{}, fn(0)) }()
		require.Eventually(t, i.Refreshing, time.Second, time.Millisecond)

		for k := 1; k < n; k++ {
			go func() { results[k] <- i.Do(ctx, Options{}, fn(k)) }()
			require.Eventually(t, func() bool { return i.Queued() == k }, time.Second, time.Millisecond)
		}
		return results
	}

	t.Run("At Most One Refresh For Concurrent 401s", func(t *testing.T) {
		var refreshes atomic.Int32
		release := make(chan struct{})
		i := New(WithRefresher(blockingRefresher(&refreshes, release, nil)))

		var mu sync.Mutex
		attempts := make(map[int]int)
		fn := func(k int) RequestFunc {
			return func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				attempts[k]++
				if attempts[k] == 1 {
					return errUnauthorized
				}
				return nil
			}
		}

		results := startWindow(t, i, fn)
		close(release)

		for k, ch := range results {
			select {
			case err := <-ch:
				assert.NoError(t, err, "request %d", k)
			case <-time.After(time.Second):
				t.Fatalf("request %d never settled", k)
			}
		}

		assert.Equal(t, int32(1), refreshes.Load())
		mu.Lock()
		for k := 0; k < n; k++ {
			assert.Equal(t, 2, attempts[k], "request %d should be replayed exactly once", k)
		}
		mu.Unlock()
		assert.False(t, i.Refreshing())
		assert.Equal(t, 0, i.Queued())
	})

	t.Run("Queued Requests Rejected With Session Expired", func(t *testing.T) {
		var refreshes atomic.Int32
		var expired atomic.Int32
		release := make(chan struct{})
		i := New(
			WithRefresher(blockingRefresher(&refreshes, release, errors.New("refresh rejected"))),
			WithSessionExpired(func() { expired.Add(1) }),
		)

		var replays atomic.Int32
		fn := func(int) RequestFunc {
			return func(context.Context) error {
				replays.Add(1)
				return errUnauthorized
			}
		}

		results := startWindow(t, i, fn)
		close(release)

		for k, ch := range results {
			select {
			case err := <-ch:
				require.ErrorIs(t, err, shared.ErrSessionExpired, "request %d", k)
				assert.Equal(t, "Session expired", err.Error())
			case <-time.After(time.Second):
				t.Fatalf("request %d never settled", k)
			}
		}

		assert.Equal(t, int32(1), refreshes.Load())
		assert.Equal(t, int32(1), expired.Load())
		assert.Equal(t, int32(n), replays.Load(), "rejected requests are not replayed")
	})

	t.Run("Queued Requests Are Released In Enqueue Order", func(t *testing.T) {
		i := New(WithRefresher(func(context.Context) error { return nil }))
		i.refreshing = true
		i.attempts = 1

		queued := make([]*queuedRequest, 3)
		for k := range queued {
			queued[k] = &queuedRequest{done: make(chan outcome, 1)}
		}
		i.queue = append(i.queue, queued...)

		require.NoError(t, i.refresh(ctx, func(context.Context) error { return nil }))
		for k, q := range queued {
			select {
			case res := <-q.done:
				assert.True(t, res.replay, "request %d", k)
			default:
				t.Fatalf("request %d was not released", k)
			}
		}
	})

	t.Run("Queued Request Honors Context", func(t *testing.T) {
		var refreshes atomic.Int32
		release := make(chan struct{})
		defer close(release)
		i := New(WithRefresher(blockingRefresher(&refreshes, release, nil)))

		go i.Do(ctx, Options{}, unauthorized)
		require.Eventually(t, i.Refreshing, time.Second, time.Millisecond)

		short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := i.Do(short, Options{}, unauthorized)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Instances Are Independent", func(t *testing.T) {
		var refreshes atomic.Int32
		release := make(chan struct{})
		defer close(release)

		a := New(WithRefresher(blockingRefresher(&refreshes, release, nil)))
		b := New()

		go a.Do(ctx, Options{}, unauthorized)
		require.Eventually(t, a.Refreshing, time.Second, time.Millisecond)

		assert.False(t, b.Refreshing())
		assert.ErrorIs(t, b.Do(ctx, Options{}, unauthorized), shared.ErrSessionExpired)
	})
}
