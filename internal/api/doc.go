// Package api provides the read-only HTTP status API and the live WebSocket
// stream for vantage-sync.
//
// Endpoints (all under /api/v1):
//
//	GET /health          component health; 503 when any check fails
//	GET /status          supervisor status, feed and runtime counters
//	GET /history?limit=N most recent sync cycles, newest first
//	GET /ws              WebSocket stream of "reading" and "status" events
//
// The server follows the same lifecycle as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
