package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/pinshare/share/service"
)

const (
	serverName    = "PinShare"
	serverVersion = "1.0.0"
)

// Client is a thin MCP client that proxies to the admin REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API at baseURL
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`PinShare - MCP Interface

Operator tools for a live location sharing relay. A sharer opens a session and
gets a 6-digit PIN; viewers join with the PIN and receive the sharer's
positions until the session expires 10 minutes after creation.

AVAILABLE TOOLS:
- server_health: Session and connection counts
- list_sessions: List live sessions, newest first
- get_session: Details of one session by PIN
- end_session: End a session before it expires

Positions themselves are never stored and cannot be read through these tools.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.NewTool("server_health",
		mcp.WithDescription("Report server health with live session and connection counts"),
	), c.handleHealth)

	c.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List all live sharing sessions"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of sessions to return (optional)"),
			mcp.Min(1),
		),
	), c.handleListSessions)

	c.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get details of a session by PIN"),
		mcp.WithString("pin",
			mcp.Required(),
			mcp.Description("6-digit session PIN"),
		),
	), c.handleGetSession)

	c.mcpServer.AddTool(mcp.NewTool("end_session",
		mcp.WithDescription("End a session before it expires. Viewers stop receiving updates."),
		mcp.WithString("pin",
			mcp.Required(),
			mcp.Description("6-digit session PIN"),
		),
	), c.handleEndSession)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves single JSON-RPC messages posted to it.
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications have no response.
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("API error: %d (is the admin API enabled?)", resp.StatusCode)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health struct {
		Status      string `json:"status"`
		Sessions    int    `json:"sessions"`
		Connections int    `json:"connections"`
	}

	if err := c.apiCall(ctx, "GET", "/health", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Status: %s\nSessions: %d\nConnections: %d\n",
		health.Status, health.Sessions, health.Connections)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := "/api/sessions"
	if limit := request.GetInt("limit", 0); limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var response struct {
		Count    int                   `json:"count"`
		Total    int                   `json:"total"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Live Sessions (%d of %d):\n\n", response.Count, response.Total)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s %s (viewers: %d, sharer connected: %t, expires in %s)\n",
			s.PIN, s.Name, s.ViewerCount, s.HasSharer, s.ExpiresIn)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pin, err := request.RequireString("pin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", "/api/sessions/"+pin, nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleEndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pin, err := request.RequireString("pin")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response map[string]string
	if err := c.apiCall(ctx, "DELETE", "/api/sessions/"+pin, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response["message"]), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	avatar := info.Avatar
	if avatar == "" {
		avatar = "(none)"
	}
	return fmt.Sprintf("Session: %s\nSharer: %s\nAvatar: %s\nSharer connected: %t\nViewers: %d\nCreated: %s\nExpires: %s (in %s)\n",
		info.PIN, info.Name, avatar, info.HasSharer, info.ViewerCount,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		info.ExpiresAt.Format("2006-01-02 15:04:05"), info.ExpiresIn)
}
