package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type retrier struct {
	cfg     *config.Config
	metrics *Metrics
	sleep   sleepFunc

	totalRetries int
}

func newRetrier(cfg *config.Config, metrics *Metrics, sleep sleepFunc) *retrier {
	if sleep == nil {
		sleep = sleepContext
	}
	return &retrier{cfg: cfg, metrics: metrics, sleep: sleep}
}

// Do runs fn until it succeeds, returns a non-retryable error, or has been
// retried cfg.MaxRetries times.
func (r *retrier) Do(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
		if attempt >= r.cfg.MaxRetries {
			return fmt.Errorf("%w: %s failed after %d attempts: %w", ErrRetriesExhausted, op, attempt+1, err)
		}

		delay := r.backoff(attempt + 1)
		r.totalRetries++
		r.metrics.IncRetries()
		slog.Warn("request failed, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (r *retrier) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := r.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}

	max := r.cfg.RetryBackoffMax
	delay := base
	for i := 1; i < attempt; i++ {
		if max > 0 && delay >= max {
			break
		}
		next := delay * 2
		if next <= delay {
			break
		}
		delay = next
	}
	if max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (r *retrier) TotalRetries() int {
	return r.totalRetries
}

func retryable(err error) bool {
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}
