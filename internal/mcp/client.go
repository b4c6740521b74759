package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Client wraps the official MCP SDK client and session
type Client struct {
	name    string
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// Connect opens a session over transport and caches the server's tools.
func Connect(ctx context.Context, name string, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "leicht", Version: "1.0.0"}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	var tools []*mcp.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		tools = append(tools, tool)
	}

	return &Client{
		name:    name,
		session: session,
		tools:   tools,
	}, nil
}

// Name returns the server name
func (c *Client) Name() string {
	return c.name
}

// Tools returns the cached list of tools
func (c *Client) Tools() []*mcp.Tool {
	return c.tools
}

// CallTool executes a tool with given arguments
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("call tool request failed: %w", err)
	}
	return result, nil
}

// Close shuts down the session
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
