package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrHostQuarantined is returned when a breaker refuses a probe because its
// host is cooling down after repeated failures.
var ErrHostQuarantined = errors.New("host quarantined")

// BreakerPolicy tunes one per-host probe gate.
type BreakerPolicy struct {
	// Threshold is the consecutive-failure count that quarantines the host.
	Threshold int
	// Cooldown is how long a quarantined host is refused before a single
	// trial probe is admitted again.
	Cooldown time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (p BreakerPolicy) withDefaults() BreakerPolicy {
	if p.Threshold < 1 {
		p.Threshold = 3
	}
	if p.Cooldown <= 0 {
		p.Cooldown = 30 * time.Second
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Breaker quarantines one probe target after consecutive failures. It admits
// everything until Threshold consecutive failures, then refuses the host for
// Cooldown. After the cooldown a single trial is let through: success lifts
// the quarantine, failure restarts it.
type Breaker struct {
	host   string
	policy BreakerPolicy

	mu       sync.Mutex
	failures int
	open     bool
	trial    bool
	openedAt time.Time
}

// NewBreaker creates a probe gate for one host.
func NewBreaker(host string, policy BreakerPolicy) *Breaker {
	return &Breaker{host: host, policy: policy.withDefaults()}
}

// Host returns the gated host.
func (b *Breaker) Host() string { return b.host }

// Quarantined reports whether the gate currently refuses probes.
func (b *Breaker) Quarantined() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.policy.Now().Sub(b.openedAt) < b.policy.Cooldown
}

// Do runs fn if the gate admits it and records the outcome. A refused call
// returns ErrHostQuarantined without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.policy.Now().Sub(b.openedAt) < b.policy.Cooldown {
		return fmt.Errorf("%w: %s", ErrHostQuarantined, b.host)
	}
	if b.trial {
		// A trial probe is already in flight; refuse the rest.
		return fmt.Errorf("%w: %s", ErrHostQuarantined, b.host)
	}
	b.trial = true
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.open = false
		b.trial = false
		b.failures = 0
		return
	}

	b.failures++
	if b.open {
		// Failed trial: restart the cooldown window.
		b.openedAt = b.policy.Now()
		b.trial = false
		return
	}
	if b.failures >= b.policy.Threshold {
		b.open = true
		b.openedAt = b.policy.Now()
	}
}
