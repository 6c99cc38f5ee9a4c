package sandbox

import (
	"context"
	"sync"
	"time"
)

// Pool manages reusable script runtimes. Acquire blocks until a runtime is
// free; Release resets it before handing it back. Closing the pool closes
// every runtime, so a cancelled execution cannot leak its backend.
type Pool struct {
	config    Config
	runtimes  chan *Runtime
	size      int
	mu        sync.RWMutex
	closed    bool
	acquireTO time.Duration
}

// NewPool pre-creates size runtimes.
func NewPool(config Config, size int) (*Pool, error) {
	if size <= 0 {
		size = 4
	}

	pool := &Pool{
		config:    config,
		runtimes:  make(chan *Runtime, size),
		size:      size,
		acquireTO: 5 * time.Second,
	}

	for i := 0; i < size; i++ {
		runtime, err := New(config)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- runtime
	}

	return pool, nil
}

// Acquire gets a runtime, bounded by the context and the pool's own timeout.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.mu.RUnlock()

	timer := time.NewTimer(p.acquireTO)
	defer timer.Stop()

	select {
	case runtime := <-p.runtimes:
		if runtime == nil {
			return nil, ErrPoolClosed
		}
		return runtime, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrAcquire
	}
}

// Release returns a runtime to the pool after resetting its state. A runtime
// that fails to reset is replaced so the pool never shrinks.
func (p *Pool) Release(runtime *Runtime) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return runtime.Close()
	}

	if err := runtime.Reset(); err != nil {
		runtime.Close()
		replacement, err := New(p.config)
		if err != nil {
			return err
		}
		runtime = replacement
	}

	select {
	case p.runtimes <- runtime:
		return nil
	default:
		// Pool already full; drop the extra runtime.
		return runtime.Close()
	}
}

// Available reports how many runtimes are idle.
func (p *Pool) Available() int {
	return len(p.runtimes)
}

// Size reports the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// Close shuts the pool and every idle runtime. In-flight runtimes are closed
// on Release.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.runtimes)
	for runtime := range p.runtimes {
		runtime.Close()
	}
	return nil
}
