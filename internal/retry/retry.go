// Package retry provides bounded-attempt retry and interval polling helpers
// shared by the attach client and the render job controller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Do when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// ErrTimeout is returned by Poll when the deadline passes before the
// condition holds.
var ErrTimeout = errors.New("poll timed out")

// Do invokes op up to maxAttempts times, sleeping delay between attempts.
// The attempt index passed to op is 1-based. It returns nil as soon as op
// succeeds; after the budget is spent it returns ErrExhausted wrapping the
// last failure.
func Do(ctx context.Context, maxAttempts int, delay time.Duration, op func(ctx context.Context, attempt int) error) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("%w: attempt budget %d", ErrExhausted, maxAttempts)
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
}

// Poll evaluates done at the given interval until it reports true, the
// condition errors, the context is cancelled, or the optional timeout
// elapses. A timeout of zero polls forever.
func Poll(ctx context.Context, interval, timeout time.Duration, done func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := done(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %s", ErrTimeout, timeout)
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
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
