package mcp

import (
	"fmt"
	"os/exec"

	"github.com/ramptix/leicht/internal/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewTransport builds the SDK transport for a configured server. Stdio
// servers are started as child processes with the configured environment,
// expanded, on top of the current one.
func NewTransport(cfg config.MCPServerConfig) (mcp.Transport, error) {
	switch cfg.Transport {
	case "stdio":
		cmd := exec.Command(cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = config.Environ(cfg.Env)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case "http":
		return &mcp.StreamableClientTransport{Endpoint: config.ExpandEnv(cfg.URL)}, nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}
