package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNotYet = errors.New("chart still drawing")

// failingUntil returns an operation that fails its first n-1 calls
func failingUntil(n int, calls *int) func(context.Context) (int, error) {
	return func(context.Context) (int, error) {
		*calls++
		if *calls < n {
			return 0, fmt.Errorf("attempt %d: %w", *calls, errNotYet)
		}
		return *calls, nil
	}
}

func TestValue_SucceedsWithinBudget(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for budget := n; budget <= n+2; budget++ {
			t.Run(fmt.Sprintf("n=%d/budget=%d", n, budget), func(t *testing.T) {
				calls := 0
				p := Policy{MaxAttempts: budget, Interval: time.Millisecond}

				got, err := Value(context.Background(), p, failingUntil(n, &calls))
				require.NoError(t, err)
				assert.Equal(t, n, got)
				assert.Equal(t, n, calls, "must stop on first success")
			})
		}
	}
}

func TestValue_ExhaustsBelowBudget(t *testing.T) {
	for n := 2; n <= 5; n++ {
		for budget := 1; budget < n; budget++ {
			t.Run(fmt.Sprintf("n=%d/budget=%d", n, budget), func(t *testing.T) {
				calls := 0
				p := Policy{MaxAttempts: budget, Interval: time.Millisecond}

				_, err := Value(context.Background(), p, failingUntil(n, &calls))
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrExhausted)
				assert.ErrorIs(t, err, errNotYet, "last attempt error must be carried")

				var exhausted *ExhaustedError
				require.ErrorAs(t, err, &exhausted)
				assert.Equal(t, budget, exhausted.Attempts)
				assert.Equal(t, budget, calls)
			})
		}
	}
}

func TestDo_ZeroIntervalRetriesImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 3}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errNotYet
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_TimeoutStopsPolling(t *testing.T) {
	p := Policy{MaxAttempts: 1000, Interval: 20 * time.Millisecond, Timeout: 100 * time.Millisecond}

	start := time.Now()
	err := Do(context.Background(), p, func(context.Context) error { return errNotYet })
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errNotYet)
	assert.Less(t, elapsed, time.Second)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Less(t, exhausted.Attempts, 1000)
	assert.Greater(t, exhausted.Attempts, 0)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, DefaultPolicy(), func(context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_NotifyReceivesEachFailure(t *testing.T) {
	var attempts []int
	p := Policy{
		MaxAttempts: 3,
		Notify:      func(attempt int, err error) { attempts = append(attempts, attempt) },
	}

	err := Do(context.Background(), p, func(context.Context) error { return errNotYet })
	require.Error(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"once", Once(), false},
		{"zero attempts", Policy{}, true},
		{"negative interval", Policy{MaxAttempts: 1, Interval: -time.Second}, true},
		{"negative timeout", Policy{MaxAttempts: 1, Timeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	err := Do(context.Background(), Policy{}, func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhausted)
}

func TestExhaustedError_Message(t *testing.T) {
	err := &ExhaustedError{Attempts: 2, Elapsed: 1500 * time.Millisecond, Last: errNotYet}
	assert.Equal(t, "retry budget exhausted after 2 attempt(s) in 1.5s: chart still drawing", err.Error())
}

func TestDo_StopEndsLoopImmediately(t *testing.T) {
	errBanner := errors.New("editor shows an error")
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5}, func(context.Context) error {
		calls++
		return Stop(errBanner)
	})

	assert.Equal(t, 1, calls)
	assert.Same(t, errBanner, err)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.NoError(t, Stop(nil))
}
