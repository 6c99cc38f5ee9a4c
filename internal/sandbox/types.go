package sandbox

import (
	"errors"
	"time"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrAcquire    = errors.New("sandbox acquisition timeout")
	ErrInterrupt  = errors.New("script interrupted")
	ErrNoExport   = errors.New("export not found")
)

// Config controls one script runtime.
type Config struct {
	// Timeout bounds a single Execute call. The orchestrator usually passes
	// its own deadline through the context as well; this is the inner wall.
	Timeout time.Duration
	// MaxCallStack bounds script recursion depth.
	MaxCallStack int
	// EnableConsole captures console.log/warn/error/info output.
	EnableConsole bool
	// AllowTimers exposes setTimeout/setInterval. Off by default; plans must
	// request the timer capability to get them, and even then they are
	// no-ops in this host.
	AllowTimers bool
}

// DefaultConfig returns a safe baseline.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

// LogEntry is one captured console call.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Result is the outcome of one script execution.
type Result struct {
	// Value is the exported value: the invoked export's return value, or the
	// script's completion value when no export is named.
	Value    interface{}
	Console  []LogEntry
	Duration time.Duration
}

// Invocation describes what to run.
type Invocation struct {
	// Code is the embedded module source.
	Code string
	// Export names a function to call after evaluation. Empty means the
	// script's completion value is the result.
	Export string
	// Args are passed to the invoked export, exported as JS values.
	Args []interface{}
}
