package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"emotrack/internal/retry"
)

func TestInvokeReturnsFirstResult(t *testing.T) {
	calls := 0
	val, ok, err := retry.Invoke(context.Background(), retry.DefaultPolicy(), func(context.Context) (string, bool, error) {
		calls++
		return "hit", true, nil
	})
	if err != nil || !ok || val != "hit" {
		t.Fatalf("Invoke = %q, %v, %v", val, ok, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestInvokeExhaustsWithTwoWaits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var waits []time.Duration
	policy := retry.Policy{
		MaxAttempts: 3,
		Base:        500 * time.Millisecond,
		Clock:       clock,
		OnRetry:     func(_ int, wait time.Duration) { waits = append(waits, wait) },
	}

	calls := 0
	type outcome struct {
		ok  bool
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		_, ok, err := retry.Invoke(context.Background(), policy, func(context.Context) (int, bool, error) {
			calls++
			return 0, false, nil
		})
		done <- outcome{ok, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Fatalf("waiting for backoff %d: %v", i, err)
		}
		clock.Advance(2 * time.Second)
	}

	select {
	case res := <-done:
		if res.ok || res.err != nil {
			t.Fatalf("expected no result, got ok=%v err=%v", res.ok, res.err)
		}
	case <-ctx.Done():
		t.Fatal("Invoke did not return")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(waits) != 2 || waits[0] != 500*time.Millisecond || waits[1] != time.Second {
		t.Fatalf("waits = %v, want [500ms 1s]", waits)
	}
}

func TestInvokeReturnsLastValueWhenExhausted(t *testing.T) {
	policy := retry.Policy{MaxAttempts: 3, Base: time.Nanosecond}
	calls := 0
	val, ok, err := retry.Invoke(context.Background(), policy, func(context.Context) (string, bool, error) {
		calls++
		return fmt.Sprintf("miss-%d", calls), false, nil
	})
	if err != nil || ok {
		t.Fatalf("expected no result, got ok=%v err=%v", ok, err)
	}
	if val != "miss-3" {
		t.Fatalf("val = %q, want value of the final attempt", val)
	}
}

func TestInvokeDoesNotRetryErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	_, ok, err := retry.Invoke(context.Background(), retry.DefaultPolicy(), func(context.Context) (int, bool, error) {
		calls++
		return 0, false, boom
	})
	if !errors.Is(err, boom) || ok {
		t.Fatalf("expected boom, got ok=%v err=%v", ok, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestInvokeCancelledDuringWait(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.Policy{MaxAttempts: 3, Clock: clock, OnRetry: func(int, time.Duration) { cancel() }}

	_, ok, err := retry.Invoke(ctx, policy, func(context.Context) (int, bool, error) {
		return 0, false, nil
	})
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got ok=%v err=%v", ok, err)
	}
}

func TestBackoffDoubles(t *testing.T) {
	p := retry.DefaultPolicy()
	for attempt, want := range []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second} {
		if got := p.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}
