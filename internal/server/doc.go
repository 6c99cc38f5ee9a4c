// Package server provides HTTP server setup and initialization for the plan
// execution engine.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, request logging)
//   - Policy profile and override loading
//   - Module resolver and sandbox pool construction
//   - Execution orchestrator wiring
//
// Server Lifecycle:
//  1. Load configuration from environment
//  2. Initialize logger
//  3. Build policy, resolver, sandbox pool, store
//  4. Wire the execution orchestrator
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg, _ := config.Load()
//	srv, err := server.New(cfg, log)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
