// Package mcp exposes the tools of Model Context Protocol servers as
// capabilities.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ramptix/leicht/internal/config"
	"github.com/ramptix/leicht/pkg/logger"
	"github.com/ramptix/leicht/pkg/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Manager coordinates multiple MCP servers
type Manager struct {
	log     *logger.Logger
	mu      sync.RWMutex
	clients map[string]*Client
	caps    map[string][]*tool.Capability
}

// NewManager creates a new MCP manager
func NewManager(log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Discard()
	}
	return &Manager{
		log:     log,
		clients: make(map[string]*Client),
		caps:    make(map[string][]*tool.Capability),
	}
}

// Initialize connects to every enabled server concurrently. A failing server
// does not stop the others; the error reports which ones failed, and is only
// fatal to the caller when no server could be started.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}

		wg.Add(1)
		go func(cfg config.MCPServerConfig) {
			defer wg.Done()

			err := func() error {
				transport, err := NewTransport(cfg)
				if err != nil {
					return err
				}
				return m.Add(ctx, cfg.Name, transport)
			}()
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("server %s: %w", cfg.Name, err))
				mu.Unlock()
			}
		}(serverCfg)
	}
	wg.Wait()

	if len(errs) == 0 {
		return nil
	}
	if m.ServerCount() == 0 {
		return fmt.Errorf("all MCP servers failed to initialize: %w", errors.Join(errs...))
	}
	return fmt.Errorf("some MCP servers failed (loaded %d/%d): %w", m.ServerCount(), m.ServerCount()+len(errs), errors.Join(errs...))
}

// Add connects to one server and adapts its tools. Tools whose parameters
// cannot be expressed as call literals are skipped.
func (m *Manager) Add(ctx context.Context, name string, transport mcp.Transport) error {
	m.mu.RLock()
	_, exists := m.clients[name]
	m.mu.RUnlock()
	if exists {
		return fmt.Errorf("duplicate server name: %s", name)
	}

	client, err := Connect(ctx, name, transport)
	if err != nil {
		return err
	}

	var caps []*tool.Capability
	for _, t := range client.Tools() {
		c, err := NewCapability(client, t)
		if err != nil {
			m.log.Warn("Skipping MCP tool: %v", err)
			continue
		}
		caps = append(caps, c)
	}
	m.log.Debug("MCP server %s provides %d tool(s)", name, len(caps))

	m.mu.Lock()
	if _, exists := m.clients[name]; exists {
		// Another Add of the same name connected first.
		m.mu.Unlock()
		client.Close()
		return fmt.Errorf("duplicate server name: %s", name)
	}
	m.clients[name] = client
	m.caps[name] = caps
	m.mu.Unlock()
	return nil
}

// Capabilities returns the adapted tools of every server, grouped by server
// in name order.
func (m *Manager) Capabilities() []*tool.Capability {
	var caps []*tool.Capability
	for _, name := range m.ListServers() {
		m.mu.RLock()
		caps = append(caps, m.caps[name]...)
		m.mu.RUnlock()
	}
	return caps
}

// Close shuts down all MCP sessions
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, client := range m.clients {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", name, err))
		}
	}
	m.clients = make(map[string]*Client)
	m.caps = make(map[string][]*tool.Capability)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing servers: %w", errors.Join(errs...))
	}
	return nil
}

// ListServers returns all active server names, sorted
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerCount returns the number of active servers
func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
