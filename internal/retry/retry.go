package retry

import (
	"context"
	"fmt"
	"time"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // doubles the delay after each failed attempt
}

// WithRetry runs fn until it succeeds or the attempt budget is spent.
// The wait between attempts respects ctx cancellation.
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.Delay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := fn(); err != nil {
			lastErr = err

			if attempt == cfg.MaxAttempts {
				return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, err)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			if cfg.Backoff {
				delay *= 2
			}
			continue
		}
		return nil
	}

	return lastErr
}
