// Package cli holds the pieces of the leicht command line: backend
// selection, the chat loop and reply rendering.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/ramptix/leicht/internal/config"
	"github.com/ramptix/leicht/pkg/hook"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/llm/anthropic"
	"github.com/ramptix/leicht/pkg/llm/groq"
	"github.com/ramptix/leicht/pkg/llm/openai"
	"github.com/ramptix/leicht/pkg/logger"
)

// NewSender creates the provider client selected by cfg.
func NewSender(cfg *config.Config) (llm.Sender, error) {
	key := cfg.Credential()
	if key == "" {
		return nil, fmt.Errorf("%s API key required (set %s, api_key in the config or use --api-key)", cfg.Provider, config.CredentialEnv(cfg.Provider))
	}
	timeout := time.Duration(cfg.Timeout)

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(key, cfg.Model, openai.WithBaseURL(cfg.BaseURL), openai.WithTimeout(timeout)), nil
	case config.ProviderGroq:
		return groq.NewClient(key, cfg.Model, groq.WithBaseURL(cfg.BaseURL), groq.WithTimeout(timeout)), nil
	case config.ProviderAnthropic:
		return anthropic.NewClient(key, cfg.Model, anthropic.WithBaseURL(cfg.BaseURL), anthropic.WithTimeout(timeout)), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// NewBackend wraps sender with the configured sampling defaults and the
// detection channel.
func NewBackend(cfg *config.Config, sender llm.Sender, log *logger.Logger) (*llm.Adapter, error) {
	var detect llm.Sender
	if dc, ok := cfg.DetectionBackend(); ok {
		s, err := NewSender(dc)
		if err != nil {
			return nil, fmt.Errorf("detection: %w", err)
		}
		detect = s
	}

	return llm.NewAdapter(sender,
		llm.WithDefaults(cfg.Sampling.Params()),
		llm.WithDetector(detect, cfg.Detection.Params()),
		llm.WithLogger(log),
	), nil
}

// NewHooks registers the confirmation prompts asked for in cfg, or returns
// nil when there are none.
func NewHooks(cfg config.HooksConfig, in io.Reader, out io.Writer) *hook.Manager {
	tools := append([]string(nil), cfg.ToolConfirm...)
	if cfg.ShellConfirm {
		tools = append(tools, "bash")
	}
	if len(tools) == 0 {
		return nil
	}
	return hook.NewManager(hook.NewConfirmHandlerWithIO(in, out, tools...))
}
