/*
Package resilience provides the retry and circuit-breaker primitives the
resolver and orchestrator lean on for network work.

# Retrier

Retry with exponential backoff is modeled as an explicit state machine
(Idle -> Attempting(n) -> Succeeded | Exhausted) driven by an injectable
scheduler, so backoff policy is unit-testable without real delays. Budgets
(attempt count, base backoff) are configuration, never hard-coded.

	retrier := resilience.NewRetrier(resilience.RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 250 * time.Millisecond,
	})
	err := retrier.Do(ctx, func(ctx context.Context) error {
		return probe(ctx, url)
	})

# Breaker

A per-host probe gate guards dependency preflight against a flapping CDN.
After a run of consecutive failures the host is quarantined for a cooldown,
then a single trial probe decides whether the quarantine lifts:

	open --[threshold failures]-> quarantined --[cooldown]-> trial

	breaker := resilience.NewBreaker("cdn.example", resilience.BreakerPolicy{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})
	err := breaker.Do(func() error {
		return probe(ctx, url)
	})

The clock is injectable through BreakerPolicy.Now, matching the Retrier's
scheduler injection.
*/
package resilience
