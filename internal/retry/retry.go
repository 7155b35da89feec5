// Package retry repeats operations that report "no result" with exponential
// backoff. Errors are never retried.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxAttempts = 3
	DefaultBase        = 500 * time.Millisecond
)

// Policy controls Invoke.
type Policy struct {
	MaxAttempts int
	// Base is the wait after the first "no result"; it doubles per attempt.
	Base  time.Duration
	Clock clockwork.Clock
	// OnRetry is called before each wait with the 1-based attempt just made.
	OnRetry func(attempt int, wait time.Duration)
}

// DefaultPolicy returns three attempts with waits of 500ms then 1s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Base: DefaultBase}
}

// Operation returns ok=false with a nil error to request another attempt.
type Operation[T any] func(ctx context.Context) (T, bool, error)

// Backoff returns the wait that follows the zero-based attempt.
func (p Policy) Backoff(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	return base << attempt
}

// Invoke runs op until it yields a result, returns an error, or MaxAttempts is
// reached. Waits of Base×2^attempt separate attempts; no wait follows the final
// attempt. Context cancellation during a wait returns the context error. When
// no attempt yields a result, the value of the last attempt is returned with
// ok=false.
func Invoke[T any](ctx context.Context, p Policy, op Operation[T]) (T, bool, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var last T
	for attempt := 0; attempt < attempts; attempt++ {
		val, ok, err := op(ctx)
		if err != nil {
			return zero, false, err
		}
		if ok {
			return val, true, nil
		}
		last = val
		if attempt == attempts-1 {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait)
		}
		select {
		case <-clock.After(wait):
		case <-ctx.Done():
			return last, false, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
	return last, false, nil
}
