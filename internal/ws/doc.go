// Package ws provides WebSocket handling for real-time plan event streams.
//
// This package implements WebSocket communication for dispatching events
// against a registered plan and pushing the resulting state snapshots and
// rendered markup back to the client.
//
// Message Types (Client → Server):
//   - dispatch: Apply an event against the plan's transitions
//   - state: Request the current committed snapshot
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - connected: Stream established for a plan
//   - state: Committed snapshot, optionally with re-rendered markup
//   - pong: Keep-alive reply
//   - error: Error occurred
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, log)
//	router.GET("/v1/plans/:id/stream", handler.HandleConnection)
package ws
