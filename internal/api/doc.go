// Package api provides the node's local status API.
//
// Routes, all under /api/v1:
//
//	GET /health   component health checks (200 ok, 503 degraded)
//	GET /status   supervisor status and device facts
//	GET /events   connectivity journal, newest first
//	GET /ws       live connectivity events over WebSocket
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// There is no authentication. The API is read-only and is expected to bind
// to a local or management interface.
package api
