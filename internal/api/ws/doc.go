// Package ws serves the live feed of events and alerts over WebSocket.
//
// Each connection subscribes to the event hub and receives every record and
// alert as it is journaled. Slow clients miss notices instead of stalling
// intake.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Connection established
//   - event: Journaled event record
//   - alert: Security alert
//   - pong: Reply to ping
//   - error: Unknown client message
//
// Query parameters narrow the feed: contextId keeps one context's traffic,
// kind=event or kind=alert keeps one notice kind.
//
// Example Usage:
//
//	handler := ws.NewHandler(hub, metrics, logger)
//	router.GET("/stream", handler.HandleConnection)
package ws
