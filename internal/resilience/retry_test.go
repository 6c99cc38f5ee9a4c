package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScheduler records requested sleeps without waiting.
type fakeScheduler struct {
	slept []time.Duration
}

func (f *fakeScheduler) Sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return nil
}

func TestRetrierSucceedsFirstAttempt(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRetrierWithScheduler(RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Second}, sched)

	err := r.Do(context.Background(), func(context.Context) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, RetrySucceeded, r.State())
	assert.Equal(t, 1, r.Attempts())
	assert.Empty(t, sched.slept)
}

func TestRetrierExponentialBackoff(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRetrierWithScheduler(RetryPolicy{MaxAttempts: 4, BaseBackoff: 100 * time.Millisecond}, sched)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("unreachable")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, RetryExhausted, r.State())
	assert.Equal(t, 4, calls)
	// Backoff doubles between attempts; no sleep after the final attempt.
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, sched.slept)
}

func TestRetrierBackoffCap(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRetrierWithScheduler(RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 100 * time.Millisecond,
		MaxBackoff:  250 * time.Millisecond,
	}, sched)

	_ = r.Do(context.Background(), func(context.Context) error { return errors.New("nope") })

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		250 * time.Millisecond,
		250 * time.Millisecond,
	}, sched.slept)
}

func TestRetrierRecoversMidway(t *testing.T) {
	sched := &fakeScheduler{}
	r := NewRetrierWithScheduler(RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Millisecond}, sched)

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, RetrySucceeded, r.State())
	assert.Equal(t, 3, r.Attempts())
}

func TestRetrierHonorsCancellation(t *testing.T) {
	r := NewRetrierWithScheduler(RetryPolicy{MaxAttempts: 10, BaseBackoff: time.Millisecond}, &fakeScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("failed then cancelled")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, RetryExhausted, r.State())
}
