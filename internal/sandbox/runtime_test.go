package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeExecution(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	tests := []struct {
		name string
		inv  Invocation
		want interface{}
	}{
		{
			name: "completion value",
			inv:  Invocation{Code: "40 + 2"},
			want: int64(42),
		},
		{
			name: "invoked export",
			inv: Invocation{
				Code:   `exports.greet = function(name) { return "hello " + name; };`,
				Export: "greet",
				Args:   []interface{}{"plan"},
			},
			want: "hello plan",
		},
		{
			name: "global function fallback",
			inv: Invocation{
				Code:   `function double(n) { return n * 2; }`,
				Export: "double",
				Args:   []interface{}{21},
			},
			want: int64(42),
		},
		{
			name: "object return",
			inv: Invocation{
				Code:   `exports.make = function() { return {count: 1}; };`,
				Export: "make",
			},
			want: map[string]interface{}{"count": int64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := runtime.Execute(context.Background(), tt.inv)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
		})
	}
}

func TestRuntimeConsoleCapture(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	result, err := runtime.Execute(context.Background(), Invocation{
		Code: `console.log("a", 1); console.warn("b"); "done"`,
	})
	require.NoError(t, err)

	require.Len(t, result.Console, 2)
	assert.Equal(t, "log", result.Console[0].Level)
	assert.Equal(t, "a 1", result.Console[0].Message)
	assert.Equal(t, "warn", result.Console[1].Level)
}

func TestRuntimeStrippedGlobals(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	tests := []string{
		`typeof require`,
		`typeof process`,
		`typeof fetch`,
		`typeof setTimeout`,
	}

	for _, code := range tests {
		t.Run(code, func(t *testing.T) {
			result, err := runtime.Execute(context.Background(), Invocation{Code: code})
			require.NoError(t, err)
			assert.Equal(t, "undefined", result.Value)
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	runtime, err := New(cfg)
	require.NoError(t, err)
	defer runtime.Close()

	_, err = runtime.Execute(context.Background(), Invocation{Code: `while (true) {}`})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInterrupt)
}

func TestRuntimeContextCancellation(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = runtime.Execute(ctx, Invocation{Code: `while (true) {}`})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRuntimeScriptError(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	_, err = runtime.Execute(context.Background(), Invocation{Code: `throw new Error("boom")`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// Runtime stays usable after a script error.
	result, err := runtime.Execute(context.Background(), Invocation{Code: `"recovered"`})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Value)
}

func TestRuntimeMissingExport(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	_, err = runtime.Execute(context.Background(), Invocation{
		Code:   `exports.other = 1;`,
		Export: "missing",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoExport)
}

func TestRuntimeResetClearsState(t *testing.T) {
	runtime, err := New(DefaultConfig())
	require.NoError(t, err)
	defer runtime.Close()

	_, err = runtime.Execute(context.Background(), Invocation{Code: `leaked = 7; leaked`})
	require.NoError(t, err)

	require.NoError(t, runtime.Reset())

	result, err := runtime.Execute(context.Background(), Invocation{Code: `typeof leaked`})
	require.NoError(t, err)
	assert.Equal(t, "undefined", result.Value)
}
