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
	"github.com/modremote/spawn-relay/relay/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
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
		"Spawn Relay",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Spawn Relay - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The relay lets you control a running game: start a session, have the
game attach to it over WebSocket, then spawn items into that session.

AVAILABLE TOOLS:
- start_session: Issue a new session token
- end_session: End a session
- list_sessions: List active sessions and whether each has a live connection
- spawn_item: Relay a spawn command to the session's connection
- list_items: Read the shared item catalog

NOTE: spawn_item only works once the game has opened its WebSocket
connection for the session token. Delivery is best-effort: if the
connection is gone you get a "no active connection" error and should
re-attach before retrying.`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_session",
		Description: "Issue a new relay session token",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleStartSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "end_session",
		Description: "End a relay session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token to end",
				},
			},
			Required: []string{"token"},
		},
	}, c.handleEndSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active relay sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	// Relay operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "spawn_item",
		Description: "Spawn an item into the game session bound to a token",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"token": map[string]interface{}{
					"type":        "string",
					"description": "Session token",
				},
				"item_id": map[string]interface{}{
					"type":        "string",
					"description": "Identifier of the item to spawn",
				},
				"quantity": map[string]interface{}{
					"type":        "integer",
					"description": "How many to spawn (defaults to 1)",
				},
			},
			Required: []string{"token", "item_id"},
		},
	}, c.handleSpawnItem)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_items",
		Description: "Read the shared item catalog",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListItems)
}

// GetMCPServer returns the underlying MCP server instance
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Tool handlers

func (c *Client) handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		UUID string `json:"UUID"`
	}

	if err := c.apiCall("POST", "/session/start", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session started.\nToken: %s", response.UUID)), nil
}

func (c *Client) handleEndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)

	body := map[string]interface{}{"UUID": token}

	if err := c.apiCall("POST", "/session/end", body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %s ended.", token)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall("GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No active sessions."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions: %d\n\n", response.Count)
	for _, sess := range response.Sessions {
		state := "no connection"
		if sess.Connected {
			state = "connected"
		}
		fmt.Fprintf(&b, "• %s [%s]\n  created %s, last used %s\n",
			sess.Token, state,
			sess.CreatedAt.Format(time.RFC3339),
			sess.LastAccessedAt.Format(time.RFC3339))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleSpawnItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	token, _ := args["token"].(string)
	itemID, _ := args["item_id"].(string)

	quantity := 1
	if q, ok := args["quantity"].(float64); ok && int(q) > 0 {
		quantity = int(q)
	}

	var response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}

	path := fmt.Sprintf("/%s/spawn?item=%s&quantity=%d", token, itemID, quantity)
	if err := c.apiCall("GET", path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Message), nil
}

func (c *Client) handleListItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var doc json.RawMessage

	if err := c.apiCall("GET", "/api/items", nil, &doc); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	pretty := new(bytes.Buffer)
	if err := json.Indent(pretty, doc, "", "  "); err != nil {
		return mcp.NewToolResultText(string(doc)), nil
	}

	return mcp.NewToolResultText("Item catalog:\n\n" + pretty.String()), nil
}

// apiCall performs an HTTP request against the REST API and decodes the
// response into result when provided.
func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
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
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["message"].(string); ok && msg != "" {
			return fmt.Errorf("%s", msg)
		}
		if msg, ok := errResp["error"].(string); ok && msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}
