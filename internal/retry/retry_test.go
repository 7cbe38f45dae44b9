package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("first attempt succeeds", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, Config{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("recovers after failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, Config{MaxAttempts: 3, Delay: time.Millisecond}, func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("budget exhausted", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, Config{MaxAttempts: 2, Delay: time.Millisecond}, func() error {
			calls++
			return errors.New("still broken")
		})
		if err == nil {
			t.Fatal("expected error after exhausting attempts")
		}
		if calls != 2 {
			t.Errorf("calls = %d, want 2", calls)
		}
	})

	t.Run("cancellation stops the wait", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := WithRetry(cctx, Config{MaxAttempts: 3, Delay: time.Hour}, func() error {
			return errors.New("fail once, then wait")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
