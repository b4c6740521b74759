package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/ramptix/leicht/internal/builtin"
	"github.com/ramptix/leicht/internal/config"
	"github.com/ramptix/leicht/internal/mcp"
	"github.com/ramptix/leicht/internal/session"
	"github.com/ramptix/leicht/pkg/assistant"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/logger"
	"github.com/ramptix/leicht/pkg/prompts"
	"github.com/ramptix/leicht/pkg/tool"
)

// App is everything a chat needs, built from the configuration.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Backend   *llm.Adapter
	Prompts   *prompts.Store
	Sessions  *session.Store
	Assistant *assistant.Assistant
	// SessionID is the resumed session, if any.
	SessionID string

	mcp *mcp.Manager
}

// AppOptions are the per-invocation choices that are not in the config file.
type AppOptions struct {
	NoTools  bool
	ResumeID string
	In       io.Reader
	Out      io.Writer
}

// NewPromptStore creates the template store described by cfg.
func NewPromptStore(cfg config.PromptsConfig) *prompts.Store {
	var opts []prompts.Option
	if cfg.Dir != "" {
		opts = append(opts, prompts.WithDir(cfg.Dir))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, prompts.WithBaseURL(cfg.BaseURL))
	}
	if cfg.NoCache {
		opts = append(opts, prompts.WithoutCache())
	}
	return prompts.New(opts...)
}

// OpenSessions opens the session store, or returns nil when persistence is
// disabled.
func OpenSessions(cfg config.SessionConfig) (*session.Store, error) {
	if cfg.Disabled {
		return nil, nil
	}
	path := cfg.Path
	if path == "" {
		path = session.DefaultPath()
	}
	return session.Open(path)
}

// NewApp connects to the provider and the MCP servers and creates the
// assistant. A failing MCP server is logged and skipped.
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger, sender llm.Sender, opts AppOptions) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}
	backend, err := NewBackend(cfg, sender, log)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config:  cfg,
		Log:     log,
		Backend: backend,
		Prompts: NewPromptStore(cfg.Prompts),
	}

	var caps []*tool.Capability
	if !opts.NoTools {
		if cfg.BuiltinTools() {
			caps = append(caps, builtin.All(cfg.Tools.Shell)...)
		}
		if len(cfg.MCP.Servers) > 0 {
			app.mcp = mcp.NewManager(log)
			if err := app.mcp.Initialize(ctx, cfg.MCP); err != nil {
				log.Warn("MCP: %v", err)
			}
			caps = append(caps, app.mcp.Capabilities()...)
		}
	}
	log.Debug("Registering %d tool(s)", len(caps))

	sessions, err := OpenSessions(cfg.Session)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	app.Sessions = sessions

	var history []llm.Message
	if opts.ResumeID != "" {
		if sessions == nil {
			app.Close()
			return nil, fmt.Errorf("cannot resume %s: sessions are disabled", opts.ResumeID)
		}
		sess, err := sessions.Get(ctx, opts.ResumeID)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.SessionID = sess.ID
		if history, err = sessions.Messages(ctx, sess.ID); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Assistant, err = assistant.New(ctx, cfg.System, app.Backend,
		assistant.WithTools(caps...),
		assistant.WithPrompts(app.Prompts, cfg.Prompts.Fill),
		assistant.WithHistory(history),
		assistant.WithLogger(log),
		assistant.WithHooks(NewHooks(cfg.Hooks, opts.In, opts.Out)),
	)
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close stops the MCP servers and closes the session store.
func (a *App) Close() error {
	var err error
	if a.mcp != nil {
		err = a.mcp.Close()
	}
	if a.Sessions != nil {
		if cerr := a.Sessions.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
