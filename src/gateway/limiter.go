package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tradeexecutor/src/metrics"
)

var ErrLimiterStopped = errors.New("gateway limiter stopped")

type call struct {
	ctx    context.Context
	fn     func(ctx context.Context) error
	result chan error
}

// RateLimiter serializes broker calls through a single worker. Calls start
// in submission order and consecutive starts are at least MinInterval apart,
// retried attempts included.
type RateLimiter struct {
	interval time.Duration
	policy   RetryPolicy
	limiter  *rate.Limiter

	queue     chan *call
	lastStart time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewRateLimiter(cfg Config) *RateLimiter {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	l := &RateLimiter{
		interval: cfg.MinInterval,
		policy:   cfg.RetryPolicy(),
		limiter:  rate.NewLimiter(limit, 1),
		queue:    make(chan *call, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// Do queues fn and blocks until the worker has run it or ctx ends. Rate-limit
// failures are retried inside the same slot, so no other call overtakes them.
func (l *RateLimiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	c := &call{ctx: ctx, fn: fn, result: make(chan error, 1)}

	select {
	case <-l.stop:
		return ErrLimiterStopped
	default:
	}

	select {
	case l.queue <- c:
		metrics.GatewayQueueDepth.Set(float64(len(l.queue)))
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return ErrLimiterStopped
	}

	// A call enqueued while Stop drains may never be picked up.
	select {
	case err := <-c.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-c.result:
			return err
		default:
			return ErrLimiterStopped
		}
	}
}

// Stop ends the worker. Calls still queued fail with ErrLimiterStopped.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
}

func (l *RateLimiter) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop:
			l.drain()
			return
		case c := <-l.queue:
			metrics.GatewayQueueDepth.Set(float64(len(l.queue)))
			c.result <- l.dispatch(c)
		}
	}
}

func (l *RateLimiter) drain() {
	for {
		select {
		case c := <-l.queue:
			c.result <- ErrLimiterStopped
		default:
			metrics.GatewayQueueDepth.Set(0)
			return
		}
	}
}

func (l *RateLimiter) dispatch(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("component", "gateway").Errorf("panic in gateway call: %v", r)
			err = fmt.Errorf("gateway call panicked: %v", r)
		}
		recordOutcome(err)
	}()

	if err := c.ctx.Err(); err != nil {
		return err
	}

	return RetryWithBackoff(c.ctx, l.policy, func(ctx context.Context) error {
		if err := l.pace(ctx); err != nil {
			return err
		}
		return c.fn(ctx)
	})
}

// pace blocks until the next start is allowed. Only the worker calls it.
func (l *RateLimiter) pace(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	if !l.lastStart.IsZero() {
		if wait := l.interval - time.Since(l.lastStart); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	l.lastStart = time.Now()
	return nil
}

func recordOutcome(err error) {
	switch {
	case err == nil:
		metrics.GatewayCalls.WithLabelValues("ok").Inc()
	case IsRateLimited(err):
		metrics.GatewayCalls.WithLabelValues("rate_limited").Inc()
	default:
		metrics.GatewayCalls.WithLabelValues("error").Inc()
	}
}
