// Package mcp exposes pinshare operator tools over the Model Context Protocol.
//
// The Client is a thin proxy: every tool calls the admin REST API, so the
// tools see exactly what /api/sessions serves and need the admin routes
// enabled on the target server.
//
// MCP Tools:
//   - server_health: Session and connection counts
//   - list_sessions: Live sessions, newest first, with an optional limit
//   - get_session: One session by PIN
//   - end_session: Delete a session before it expires
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: client.HTTPHandler() mounted at POST /mcp
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:3000")
//	router.Handle("/mcp", client.HTTPHandler())
package mcp
