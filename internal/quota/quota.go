// Package quota gates plan executions per tenant.
//
// The orchestrator consults the governor before every run; a denied tenant
// gets a typed rejection without any plan work happening. The engine only
// consumes the allow/deny contract; production deployments can plug in a
// shared quota service behind the same interface.
package quota

import (
	"sync"

	"golang.org/x/time/rate"
)

// Governor answers whether a tenant may execute a plan right now.
type Governor interface {
	Allow(tenant string) bool
}

// Unlimited is a Governor that never denies; used when the gate is disabled.
type Unlimited struct{}

func (Unlimited) Allow(string) bool { return true }

// TokenBucket is a per-tenant token bucket Governor.
type TokenBucket struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucket creates a governor allowing rps executions per second with
// the given burst, per tenant. rps <= 0 disables the gate.
func NewTokenBucket(rps float64, burst int) Governor {
	if rps <= 0 {
		return Unlimited{}
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

// Allow consumes one token for the tenant.
func (t *TokenBucket) Allow(tenant string) bool {
	t.mu.Lock()
	limiter, ok := t.buckets[tenant]
	if !ok {
		limiter = rate.NewLimiter(t.rps, t.burst)
		t.buckets[tenant] = limiter
	}
	t.mu.Unlock()

	return limiter.Allow()
}
