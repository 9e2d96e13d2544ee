package gateway

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeexecutor/src/metrics"
)

type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Initial: 800 * time.Millisecond, Max: 8 * time.Second}
}

// Delay returns Initial * 2^attempt, capped at Max.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return p.Max
	}

	d := p.Initial * time.Duration(1<<attempt)
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// RetryWithBackoff runs fn and retries it only while it fails with a
// rate-limit error. Any other error is returned on first occurrence.
func RetryWithBackoff(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRateLimited(err) || attempt == p.MaxRetries {
			return err
		}

		delay := p.Delay(attempt)
		metrics.GatewayRetries.Inc()
		logger.WithFields(map[string]interface{}{
			"component": "gateway",
			"attempt":   attempt + 1,
			"delay":     delay.String(),
		}).WithError(err).Warn("Rate limited by broker, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
