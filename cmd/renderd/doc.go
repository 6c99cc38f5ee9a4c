// Package main is the entry point for the renderify plan execution daemon.
//
// The daemon accepts untrusted, machine-generated rendering plans over HTTP,
// runs them through validation, manifest pinning, policy checking, dependency
// preflight, and sandboxed execution, and serves the rendered result plus a
// live event stream per plan.
//
// The server provides:
//   - REST API for plan execution, probing, and policy checks
//   - WebSocket streaming for per-plan event dispatch
//   - Prometheus metrics and health endpoints
//   - Rate limiting and per-tenant execution quotas
//
// Configuration is environment-driven (12-factor) under the RENDERIFY_
// prefix; see the config package for every knob and its default.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
