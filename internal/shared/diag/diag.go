package diag

import "fmt"

// Level classifies diagnostic severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Diagnostic is a leveled, coded finding attached to a plan check or execution.
// Codes are namespaced strings so downstream consumers can filter by subsystem.
type Diagnostic struct {
	Level   Level  `json:"level"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Code namespaces. Every diagnostic carries a code beginning with one of these
// prefixes; callers filter on the prefix to distinguish subsystems.
const (
	NamespacePreflight = "RUNTIME_PREFLIGHT"
	NamespaceExecution = "RUNTIME_EXEC"
	NamespacePolicy    = "POLICY"
	NamespaceResolver  = "RESOLVER"
)

// Well-known codes.
const (
	CodePreflightUnreachable    = "RUNTIME_PREFLIGHT_DEP_UNREACHABLE"
	CodePreflightResolveFailed  = "RUNTIME_PREFLIGHT_RESOLVE_FAILED"
	CodePreflightSpecVersion    = "RUNTIME_PREFLIGHT_SPEC_VERSION"
	CodePreflightPolicyIssue    = "RUNTIME_PREFLIGHT_POLICY_ISSUE"
	CodeExecTimeout             = "RUNTIME_EXEC_TIMEOUT"
	CodeExecScriptError         = "RUNTIME_EXEC_SCRIPT_ERROR"
	CodeExecIsolationFallback   = "RUNTIME_EXEC_ISOLATION_FALLBACK"
	CodeExecSandboxRefused      = "RUNTIME_EXEC_SANDBOX_REFUSED"
	CodePolicyDOMWrite          = "POLICY_DOM_WRITE_UNDECLARED"
	CodePolicyUnauthorizedMod   = "POLICY_MODULE_UNAUTHORIZED"
	CodePolicyMissingIntegrity  = "POLICY_INTEGRITY_MISSING"
	CodePolicyBadHostname       = "POLICY_HOSTNAME_MALFORMED"
	CodePolicyCeilingExceeded   = "POLICY_CEILING_EXCEEDED"
	CodePolicyCeilingInvalid    = "POLICY_CEILING_INVALID"
	CodeResolverNoIntegrity     = "RESOLVER_INTEGRITY_UNAVAILABLE"
	CodeResolverUnsupportedSpec = "RESOLVER_UNSUPPORTED_SPECIFIER"
)

// New builds a diagnostic.
func New(level Level, code, format string, args ...interface{}) Diagnostic {
	return Diagnostic{Level: level, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Info builds an info-level diagnostic.
func Info(code, format string, args ...interface{}) Diagnostic {
	return New(LevelInfo, code, format, args...)
}

// Warning builds a warning-level diagnostic.
func Warning(code, format string, args ...interface{}) Diagnostic {
	return New(LevelWarning, code, format, args...)
}

// Error builds an error-level diagnostic.
func Error(code, format string, args ...interface{}) Diagnostic {
	return New(LevelError, code, format, args...)
}

// HasErrors reports whether any diagnostic in the slice is error-level.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Level == LevelError {
			return true
		}
	}
	return false
}
