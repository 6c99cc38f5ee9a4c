package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the final attempt error once the budget is spent.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy is the attempt budget and backoff shape. Budgets come from
// configuration; nothing here is hard-coded at call sites.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt, doubled per retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled delay. Zero means uncapped.
	MaxBackoff time.Duration
}

// RetryState is the phase of one retry run.
type RetryState int

const (
	RetryIdle RetryState = iota
	RetryAttempting
	RetrySucceeded
	RetryExhausted
)

// Scheduler abstracts the delay between attempts so tests can run the state
// machine without wall-clock waits.
type Scheduler interface {
	// Sleep blocks for d or until the context is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// timerScheduler is the production scheduler backed by time.Timer.
type timerScheduler struct{}

func (timerScheduler) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retrier drives the Idle -> Attempting(n) -> Succeeded|Exhausted machine.
type Retrier struct {
	policy    RetryPolicy
	scheduler Scheduler

	state   RetryState
	attempt int
}

// NewRetrier builds a retrier with the production scheduler.
func NewRetrier(policy RetryPolicy) *Retrier {
	return NewRetrierWithScheduler(policy, timerScheduler{})
}

// NewRetrierWithScheduler builds a retrier with an injected scheduler.
func NewRetrierWithScheduler(policy RetryPolicy, scheduler Scheduler) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 100 * time.Millisecond
	}
	return &Retrier{policy: policy, scheduler: scheduler, state: RetryIdle}
}

// State returns the phase after the most recent Do call.
func (r *Retrier) State() RetryState {
	return r.state
}

// Attempts returns how many attempts the most recent Do call made.
func (r *Retrier) Attempts() int {
	return r.attempt
}

// Do runs fn until it succeeds, the attempt budget is spent, or the context
// is cancelled. The returned error wraps the final attempt's error.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	r.state = RetryAttempting
	r.attempt = 0

	var lastErr error
	for r.attempt < r.policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			r.state = RetryExhausted
			return err
		}

		r.attempt++
		lastErr = fn(ctx)
		if lastErr == nil {
			r.state = RetrySucceeded
			return nil
		}

		if r.attempt >= r.policy.MaxAttempts {
			break
		}
		if err := r.scheduler.Sleep(ctx, r.backoff(r.attempt)); err != nil {
			r.state = RetryExhausted
			return err
		}
	}

	r.state = RetryExhausted
	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, r.attempt, lastErr)
}

// backoff returns the delay before attempt n+1, exponential in n.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.policy.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.policy.MaxBackoff > 0 && d >= r.policy.MaxBackoff {
			return r.policy.MaxBackoff
		}
	}
	if r.policy.MaxBackoff > 0 && d > r.policy.MaxBackoff {
		return r.policy.MaxBackoff
	}
	return d
}
