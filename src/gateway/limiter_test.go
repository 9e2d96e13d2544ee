package gateway

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(interval time.Duration) Config {
	return Config{
		MinInterval:  interval,
		QueueSize:    16,
		MaxRetries:   3,
		RetryInitial: time.Millisecond,
		RetryMax:     4 * time.Millisecond,
	}
}

// N concurrent callers must start at least MinInterval apart.
func TestRateLimiterSpacesCallStarts(t *testing.T) {
	interval := 25 * time.Millisecond
	l := NewRateLimiter(testConfig(interval))
	defer l.Stop()

	const n = 6
	var mu sync.Mutex
	starts := make([]time.Time, 0, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, starts, n)
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// timestamps are taken inside fn, slightly after the slot opens
		if gap < interval-time.Millisecond {
			t.Fatalf("calls %d and %d started %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestRateLimiterNeverOverlapsCalls(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Do(context.Background(), func(ctx context.Context) error {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&maxInFlight)
					if cur <= old || atomic.CompareAndSwapInt32(&maxInFlight, old, cur) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
}

func TestRateLimiterRetriesRateLimitedCalls(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	attempts := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("openapi error: code=429002 api request is limited")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRateLimiterSurfacesOtherErrorsImmediately(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	boom := errors.New("insufficient buying power")
	attempts := 0
	err := l.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRateLimiterQueuedCallsFailAfterStop(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	l.Stop()
	l.Stop()

	err := l.Do(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLimiterStopped)
}

// A call that lands in the queue after the worker has drained it must not
// block forever.
func TestRateLimiterCallEnqueuedAfterWorkerExit(t *testing.T) {
	l := &RateLimiter{
		queue: make(chan *call, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	close(l.done)

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Do(context.Background(), func(ctx context.Context) error { return nil })
	}()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrLimiterStopped)
	case <-time.After(time.Second):
		t.Fatal("Do blocked after the worker exited")
	}
}

func TestRateLimiterHonoursCallerContext(t *testing.T) {
	l := NewRateLimiter(testConfig(time.Millisecond))
	defer l.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := l.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
