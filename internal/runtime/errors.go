package runtime

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure a caller sees wraps exactly one of these;
// backend-specific errors (sandbox, network, isolation) never escape raw.
var (
	// ErrInvalidPlan: structural validation failed. Fatal, nothing executed.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrPolicyRejected: the security checker returned unsafe. Fatal.
	ErrPolicyRejected = errors.New("plan rejected by policy")
	// ErrDependencyUnavailable: preflight failed hard (only when configured
	// to fail on preflight errors; otherwise a diagnostic).
	ErrDependencyUnavailable = errors.New("plan dependency unavailable")
	// ErrExecution: embedded logic threw. Recoverable; committed state is
	// preserved.
	ErrExecution = errors.New("plan execution failed")
	// ErrTimedOut: the wall-clock deadline elapsed. Same recovery as
	// ErrExecution: no partial state commit.
	ErrTimedOut = errors.New("plan execution timed out")
	// ErrQuotaDenied: the tenant quota gate refused the run.
	ErrQuotaDenied = errors.New("tenant quota exceeded")
)

// invalidPlan wraps a validation failure into the taxonomy.
func invalidPlan(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
}

// executionError wraps a backend failure into the taxonomy.
func executionError(err error) error {
	return fmt.Errorf("%w: %v", ErrExecution, err)
}
