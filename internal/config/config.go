package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration.
type Config struct {
	Server   ServerConfig
	Runtime  RuntimeConfig
	Resolver ResolverConfig
	Policy   PolicyConfig
	Sandbox  SandboxConfig
	Quota    QuotaConfig
	Logging  LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// AllowedOrigins lists browser origins admitted by CORS. "*" admits all.
	AllowedOrigins []string `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// RuntimeConfig holds execution orchestrator configuration.
type RuntimeConfig struct {
	// DefaultDeadline bounds every invocation when the plan omits maxExecutionMs.
	DefaultDeadline time.Duration `envconfig:"RUNTIME_DEFAULT_DEADLINE" default:"5s"`
	// MaxDeadline caps plan-requested deadlines.
	MaxDeadline time.Duration `envconfig:"RUNTIME_MAX_DEADLINE" default:"30s"`
	// SupportedSpecVersions lists spec-version tags accepted without diagnostics.
	SupportedSpecVersions []string `envconfig:"RUNTIME_SUPPORTED_SPEC_VERSIONS" default:"1.0,1.1"`
	// FailOnUnsupportedVersion upgrades unsupported spec versions from diagnostic to failure.
	FailOnUnsupportedVersion bool `envconfig:"RUNTIME_FAIL_ON_UNSUPPORTED_VERSION" default:"false"`
	// FailOnDependencyPreflightError upgrades preflight failures from warning to error.
	FailOnDependencyPreflightError bool `envconfig:"RUNTIME_FAIL_ON_PREFLIGHT_ERROR" default:"false"`
	// PreflightRetries bounds reachability probe attempts per dependency.
	PreflightRetries int `envconfig:"RUNTIME_PREFLIGHT_RETRIES" default:"2"`
	// PreflightBackoff is the initial backoff between probe attempts, doubled per retry.
	PreflightBackoff time.Duration `envconfig:"RUNTIME_PREFLIGHT_BACKOFF" default:"250ms"`
	// PreflightTimeout bounds a single probe request.
	PreflightTimeout time.Duration `envconfig:"RUNTIME_PREFLIGHT_TIMEOUT" default:"3s"`
	// ProbeFailureThreshold quarantines a dependency host after this many
	// consecutive probe failures.
	ProbeFailureThreshold int `envconfig:"RUNTIME_PROBE_FAILURE_THRESHOLD" default:"3"`
	// ProbeQuarantine is how long a quarantined host is skipped.
	ProbeQuarantine time.Duration `envconfig:"RUNTIME_PROBE_QUARANTINE" default:"30s"`
	// AllowIsolationFallback permits downgrading to in-process execution
	// when the isolated profile is unavailable on this host.
	AllowIsolationFallback bool `envconfig:"RUNTIME_ALLOW_ISOLATION_FALLBACK" default:"true"`
}

// ResolverConfig holds module resolution configuration.
type ResolverConfig struct {
	// CDNBase is the primary content-delivery base URL for bare specifiers.
	CDNBase string `envconfig:"RESOLVER_CDN_BASE" default:"https://esm.sh"`
	// FallbackBases are tried in order when the primary base is unreachable.
	FallbackBases []string `envconfig:"RESOLVER_FALLBACK_BASES" default:"https://cdn.jsdelivr.net/npm,https://unpkg.com"`
	// IntegrityTimeout bounds one integrity fetch.
	IntegrityTimeout time.Duration `envconfig:"RESOLVER_INTEGRITY_TIMEOUT" default:"10s"`
	// IntegrityRetries bounds integrity fetch attempts per URL.
	IntegrityRetries int `envconfig:"RESOLVER_INTEGRITY_RETRIES" default:"2"`
}

// PolicyConfig holds security policy configuration.
type PolicyConfig struct {
	// Profile selects the base policy: strict, balanced, or relaxed.
	Profile string `envconfig:"POLICY_PROFILE" default:"balanced"`
	// OverridesFile optionally points at a YAML file of per-deployment overrides.
	OverridesFile string `envconfig:"POLICY_OVERRIDES_FILE" default:""`
	// MaxImports is the hard system ceiling on plan imports.
	MaxImports int `envconfig:"POLICY_MAX_IMPORTS" default:"64"`
	// MaxComponentInvocations is the hard system ceiling per execution.
	MaxComponentInvocations int `envconfig:"POLICY_MAX_COMPONENT_INVOCATIONS" default:"512"`
	// MaxExecutionMs is the hard system ceiling on plan-requested deadlines.
	MaxExecutionMs int `envconfig:"POLICY_MAX_EXECUTION_MS" default:"30000"`
}

// SandboxConfig holds embedded-source sandbox configuration.
type SandboxConfig struct {
	// Mode selects browser-hosted sandboxing: none, worker, iframe, or realm.
	Mode string `envconfig:"SANDBOX_MODE" default:"worker"`
	// FailClosed refuses execution when the requested mode cannot be honored.
	FailClosed bool `envconfig:"SANDBOX_FAIL_CLOSED" default:"true"`
	// PoolSize is the number of pre-warmed script runtimes.
	PoolSize int `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	// MaxCallStack bounds script recursion depth.
	MaxCallStack int `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
}

// QuotaConfig holds the tenant quota gate configuration.
type QuotaConfig struct {
	// ExecutionsPerSecond limits executions per tenant. Zero disables the gate.
	ExecutionsPerSecond float64 `envconfig:"QUOTA_EXECUTIONS_PER_SECOND" default:"10"`
	// Burst is the per-tenant burst allowance.
	Burst int `envconfig:"QUOTA_BURST" default:"20"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("renderify", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.Runtime.DefaultDeadline <= 0 {
		return fmt.Errorf("runtime default deadline must be positive")
	}
	if c.Runtime.MaxDeadline < c.Runtime.DefaultDeadline {
		return fmt.Errorf("runtime max deadline cannot be below the default deadline")
	}
	if c.Runtime.PreflightRetries < 0 {
		return fmt.Errorf("preflight retries cannot be negative")
	}
	if c.Resolver.CDNBase == "" {
		return fmt.Errorf("resolver CDN base cannot be empty")
	}
	switch c.Policy.Profile {
	case "strict", "balanced", "relaxed":
	default:
		return fmt.Errorf("unknown policy profile %q", c.Policy.Profile)
	}
	switch c.Sandbox.Mode {
	case "none", "worker", "iframe", "realm":
	default:
		return fmt.Errorf("unknown sandbox mode %q", c.Sandbox.Mode)
	}
	return nil
}
