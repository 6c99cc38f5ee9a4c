// Package http provides HTTP handlers and routing for the plan engine REST API.
//
// This package implements all HTTP endpoints using the Gin framework, including
// health checks, plan execution, dry-run probing, policy checks, and event
// dispatch.
//
// Endpoints:
//   - Health: / and /health
//   - Execution: /v1/plans/execute, /v1/plans/probe, /v1/plans/check
//   - Plans: /v1/plans, /v1/plans/:id, /v1/plans/:id/state
//   - Events: /v1/plans/:id/events
//   - Modules: /v1/modules/resolve, /v1/modules/source
//   - Observability: /metrics
//
// Features:
//   - JSON request/response handling
//   - Error-class to status-code mapping
//   - Tenant extraction for quota gating
//   - Request validation before any execution phase
//
// Example Usage:
//
//	handlers := http.NewHandlers(manager, store, checker, pool, metrics, log)
//	router.GET("/health", handlers.Health)
//	router.POST("/v1/plans/execute", handlers.ExecutePlan)
package http
