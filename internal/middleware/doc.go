// Package middleware provides production-ready HTTP middleware for the plan
// engine API.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting
//   - GlobalRateLimit: Process-wide request ceiling
//   - RequestLogger: Structured per-request logging
//
// Rate Limiting:
//   - Per-IP tracking with token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Distinct from the per-tenant execution quota inside the orchestrator
//
// Example Usage:
//
//	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.Use(middleware.RequestLogger(log))
package middleware
