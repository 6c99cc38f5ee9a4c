// Package config provides 12-factor configuration management for the plan
// execution engine.
//
// Configuration is loaded from environment variables with sensible defaults.
// Every knob the spec treats as tunable per deployment lives here: execution
// deadlines, preflight retry budgets, CDN bases, the policy profile, and the
// sandbox mode.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Runtime: deadlines, preflight retry/backoff, isolation fallback
//   - Resolver: CDN bases and integrity fetch budgets
//   - Policy: profile selection, overrides file, hard system ceilings
//   - Sandbox: browser-hosted sandbox mode, fail-closed flag, pool size
//   - Quota: per-tenant execution rate gate
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg, err := config.Load()
//	fmt.Printf("Default deadline: %s\n", cfg.Runtime.DefaultDeadline)
//
// Environment Variables (prefix RENDERIFY_):
//   - PORT, HOST
//   - RUNTIME_DEFAULT_DEADLINE, RUNTIME_PREFLIGHT_RETRIES, ...
//   - RESOLVER_CDN_BASE, RESOLVER_FALLBACK_BASES
//   - POLICY_PROFILE, POLICY_MAX_EXECUTION_MS
//   - SANDBOX_MODE, SANDBOX_FAIL_CLOSED
//   - LOG_LEVEL, LOG_DEV
package config
