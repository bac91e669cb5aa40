// Package ws implements the live stats WebSocket hub.
//
// Hub manages a set of connected clients and broadcasts the prediction
// service stats to all of them on a configurable interval (default 5s).
//
// New(source, alerts, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker; it blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket, sends the current
// snapshot immediately on connect, then streams updates on each tick.
//
// Message format sent to clients:
//
//	{
//	  "event": "stats",
//	  "data":  { "stats": {...}, "model": {...}, "active_alerts": 0, "generated_at": "..." }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The server mounts the hub at /ws/stream.
package ws
