// Package api provides the HTTP surface of the pinshare server.
//
// The api package implements:
//   - The websocket upgrade endpoint
//   - Health and Prometheus endpoints
//   - Operator endpoints for inspecting and ending sessions
//   - Static file serving for the web client
//
// Endpoints:
//
//   - GET /ws - Upgrade to the sharing websocket
//   - GET /health - {"status": "healthy", "sessions": n, "connections": n}
//   - GET /metrics - Prometheus exposition, when enabled
//   - POST /mcp - MCP JSON-RPC endpoint, when mounted
//
// Session Management (admin only):
//   - GET /api/sessions - List live sessions, newest first (?limit=n)
//   - GET /api/sessions/{pin} - Get one session
//   - DELETE /api/sessions/{pin} - End a session before it expires
//
// Usage:
//
//	server := api.NewServer(pairing, hub,
//		api.WithAdmin(cfg.Admin.Enabled),
//		api.WithMetrics(metrics.Handler()),
//		api.WithStaticDir(cfg.Server.StaticDir),
//	)
//	http.ListenAndServe(addr, server)
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes. A malformed
// PIN is a 400, an unknown or expired one a 404:
//
//	{
//	  "error": "session 123456: session not found"
//	}
package api
