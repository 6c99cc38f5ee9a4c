package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps a goja VM with security controls. One Runtime runs one
// script at a time; concurrent Execute calls serialize on the internal lock.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a sandboxed runtime with stripped globals.
func New(config Config) (*Runtime, error) {
	r := &Runtime{config: config}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs one invocation under the runtime's timeout and the caller's
// context. A deadline hit interrupts the VM; no partial result is returned.
func (r *Runtime) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, fmt.Errorf("runtime is closed")
	}

	start := time.Now()

	r.consoleMu.Lock()
	r.console = r.console[:0]
	r.consoleMu.Unlock()

	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	done := make(chan struct{})
	// Capture the VM pointer: the field can be nilled by Close once Execute
	// releases the lock, but this goroutine may still be selecting.
	vm := r.vm
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt(ErrInterrupt)
		case <-ctx.Done():
			vm.Interrupt(ErrInterrupt)
		case <-done:
		}
	}()

	value, err := r.run(inv)
	close(done)

	result := &Result{Duration: time.Since(start)}
	r.consoleMu.Lock()
	result.Console = append(result.Console, r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		if isInterrupt(err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			return result, ErrInterrupt
		}
		return result, fmt.Errorf("script error: %w", err)
	}

	result.Value = value
	return result, nil
}

func (r *Runtime) run(inv Invocation) (interface{}, error) {
	// Module-style exports land on a plain object the script can assign to.
	exports := r.vm.NewObject()
	r.vm.Set("exports", exports)

	completion, err := r.vm.RunString(inv.Code)
	if err != nil {
		return nil, err
	}

	if inv.Export == "" {
		return export(completion), nil
	}

	target := exports.Get(inv.Export)
	if target == nil || goja.IsUndefined(target) {
		// Fall back to a global of the same name.
		target = r.vm.GlobalObject().Get(inv.Export)
	}
	fn, ok := goja.AssertFunction(target)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a function", ErrNoExport, inv.Export)
	}

	args := make([]goja.Value, len(inv.Args))
	for i, arg := range inv.Args {
		args[i] = r.vm.ToValue(arg)
	}
	ret, err := fn(goja.Undefined(), args...)
	if err != nil {
		return nil, err
	}
	return export(ret), nil
}

// reset rebuilds the VM with a fresh global scope.
func (r *Runtime) reset() error {
	vm := goja.New()
	if r.config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}
	r.vm = vm
	r.console = nil
	return r.setupGlobals()
}

// setupGlobals strips host escape hatches and wires the console.
func (r *Runtime) setupGlobals() error {
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("globalThis_fetch", goja.Undefined())
	r.vm.Set("fetch", goja.Undefined())

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		console.Set("log", r.makeConsoleFunc("log"))
		console.Set("warn", r.makeConsoleFunc("warn"))
		console.Set("error", r.makeConsoleFunc("error"))
		console.Set("info", r.makeConsoleFunc("info"))
		r.vm.Set("console", console)
	}

	// Timers are no-ops in this host: timer-capability plans run their timer
	// logic browser-side, never here.
	noop := func(call goja.FunctionCall) goja.Value { return goja.Undefined() }
	if r.config.AllowTimers {
		r.vm.Set("setTimeout", noop)
		r.vm.Set("setInterval", noop)
	} else {
		r.vm.Set("setTimeout", goja.Undefined())
		r.vm.Set("setInterval", goja.Undefined())
	}

	return nil
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

func export(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func isInterrupt(err error) bool {
	var interrupted *goja.InterruptedError
	return errors.As(err, &interrupted)
}

// Reset rebuilds the runtime state between pooled uses.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

// Close releases the VM.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vm = nil
	r.console = nil
	return nil
}
