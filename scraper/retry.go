package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/Quintui/car-details-web-scraper/config"
)

// retrier re-runs an operation after transient fetch failures with capped
// exponential backoff. Non-transient failures return immediately so callers
// can tell a dead endpoint from a flaky one.
type retrier struct {
	maxRetries int
	backoff    time.Duration
	backoffMax time.Duration
	metrics    *Metrics
}

func newRetrier(cfg *config.Config, metrics *Metrics) *retrier {
	return &retrier{
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		backoffMax: cfg.RetryBackoffMax,
		metrics:    metrics,
	}
}

func (r *retrier) do(ctx context.Context, label string, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || !isTransient(err) {
			return err
		}
		if attempt >= r.maxRetries {
			return err
		}

		r.metrics.IncRetries()
		delay := r.delay(attempt + 1)
		slog.Warn("transient failure, retrying",
			slog.String("op", label),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (r *retrier) delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := r.backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := r.backoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
