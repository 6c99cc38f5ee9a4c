package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 2)
	require.NoError(t, err)
	defer pool.Close()

	assert.Equal(t, 2, pool.Available())

	runtime, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Available())

	result, err := runtime.Execute(context.Background(), Invocation{Code: `1 + 1`})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Value)

	require.NoError(t, pool.Release(runtime))
	assert.Equal(t, 2, pool.Available())
}

func TestPoolReleaseResetsRuntimeState(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	runtime, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	_, err = runtime.Execute(context.Background(), Invocation{Code: `leaked = true`})
	require.NoError(t, err)
	require.NoError(t, pool.Release(runtime))

	runtime, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(runtime)

	result, err := runtime.Execute(context.Background(), Invocation{Code: `typeof leaked`})
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value, "pooled runtime must not leak state between uses")
}

func TestPoolAcquireRespectsContext(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 1)
	require.NoError(t, err)
	defer pool.Close()

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(held)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolCloseReleasesAllRuntimes(t *testing.T) {
	pool, err := NewPool(DefaultConfig(), 3)
	require.NoError(t, err)

	// One runtime in flight while the pool closes: the cancelled run's
	// backend must still be reclaimed via Release, not leaked.
	inflight, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, pool.Close())

	_, err = pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)

	// Releasing after close closes the runtime rather than re-pooling it.
	require.NoError(t, pool.Release(inflight))
	_, err = inflight.Execute(context.Background(), Invocation{Code: `1`})
	assert.Error(t, err, "released runtime must be closed once the pool is closed")

	// Close is idempotent.
	require.NoError(t, pool.Close())
}
