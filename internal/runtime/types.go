package runtime

import (
	"time"

	"github.com/webllm/renderify/internal/plan"
	"github.com/webllm/renderify/internal/sandbox"
	"github.com/webllm/renderify/internal/shared/diag"
)

// Phase is one station of the invocation state machine.
type Phase string

const (
	PhaseReceived              Phase = "received"
	PhaseSpecVersionChecked    Phase = "spec_version_checked"
	PhaseManifestPinned        Phase = "manifest_pinned"
	PhasePolicyChecked         Phase = "policy_checked"
	PhaseDependencyPreflighted Phase = "dependency_preflighted"
	PhaseExecuting             Phase = "executing"
	PhaseCompleted             Phase = "completed"
	PhaseFailed                Phase = "failed"
	PhaseTimedOut              Phase = "timed_out"
)

// Result is what callers get back from an execution or event dispatch.
type Result struct {
	// Root is the plan's UI tree after execution.
	Root plan.Node `json:"root,omitempty"`
	// HTML is the rendered, sanitized markup.
	HTML string `json:"html,omitempty"`
	// Diagnostics accumulated across all phases.
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	// State is the committed snapshot after the run.
	State map[string]interface{} `json:"state,omitempty"`
	// Console carries captured script console output.
	Console []sandbox.LogEntry `json:"console,omitempty"`
	// HandledEvent names the event type a dispatch applied, if any.
	HandledEvent string `json:"handledEvent,omitempty"`
	// AppliedActions counts the actions a dispatch applied.
	AppliedActions int `json:"appliedActions,omitempty"`
	// Phase is the terminal station of the state machine.
	Phase Phase `json:"phase"`
	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`
	// InvocationID identifies this run in logs and metrics.
	InvocationID string `json:"invocationId"`
}

// Options configure a Manager. Everything the spec calls tunable per
// deployment lands here; nothing is hard-coded in the control flow.
type Options struct {
	// DefaultDeadline bounds invocations when the plan omits maxExecutionMs.
	// Never zero: a plan without a ceiling still gets a deadline.
	DefaultDeadline time.Duration
	// MaxDeadline caps plan-requested deadlines.
	MaxDeadline time.Duration
	// SupportedSpecVersions, when non-empty, makes unlisted versions a
	// diagnostic (or a failure, with FailOnUnsupportedVersion).
	SupportedSpecVersions []string
	// FailOnUnsupportedVersion upgrades the version diagnostic to a failure.
	FailOnUnsupportedVersion bool
	// FailOnDependencyPreflightError turns preflight warnings into hard
	// DependencyUnavailable failures.
	FailOnDependencyPreflightError bool
	// PreflightRetries bounds probe attempts per dependency.
	PreflightRetries int
	// PreflightBackoff is the initial inter-attempt backoff.
	PreflightBackoff time.Duration
	// PreflightTimeout bounds one probe request.
	PreflightTimeout time.Duration
	// ProbeFailureThreshold is the consecutive-failure count that
	// quarantines a dependency host from further probing.
	ProbeFailureThreshold int
	// ProbeQuarantine is how long a failing host is skipped before probing
	// resumes with a trial request.
	ProbeQuarantine time.Duration
	// FallbackBases are alternative CDN bases probed when the primary URL
	// is unreachable.
	FallbackBases []string
	// CDNBase is the primary CDN base, needed to rewrite fallback URLs.
	CDNBase string
	// AllowIsolationFallback permits in-process execution when the isolated
	// tier is unavailable.
	AllowIsolationFallback bool
	// IsolatedTierAvailable reports whether this host can provide the
	// isolated tier.
	IsolatedTierAvailable bool
	// SandboxMode is the requested browser-hosted sandbox mode.
	SandboxMode string
	// SandboxFailClosed refuses execution when SandboxMode cannot be
	// honored instead of downgrading.
	SandboxFailClosed bool
	// SupportedSandboxModes lists what the serving host can honor.
	SupportedSandboxModes []string
}

// DefaultOptions mirror the shipped configuration.
func DefaultOptions() Options {
	return Options{
		DefaultDeadline:        5 * time.Second,
		MaxDeadline:            30 * time.Second,
		SupportedSpecVersions:  []string{"1.0", "1.1"},
		PreflightRetries:       2,
		PreflightBackoff:       250 * time.Millisecond,
		PreflightTimeout:       3 * time.Second,
		ProbeFailureThreshold:  3,
		ProbeQuarantine:        30 * time.Second,
		AllowIsolationFallback: true,
		SandboxMode:            "worker",
		SandboxFailClosed:      true,
		SupportedSandboxModes:  []string{"none", "worker", "iframe"},
	}
}
