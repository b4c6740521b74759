// Package assistant drives a conversation: it keeps the message history,
// asks the backend for replies, runs the tools the model calls and feeds the
// results back.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramptix/leicht/pkg/hook"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/logger"
	"github.com/ramptix/leicht/pkg/prompts"
	"github.com/ramptix/leicht/pkg/tool"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/ramptix/leicht/pkg/assistant")

var (
	// ErrEmptyInquiry is returned when RunMessages receives no messages.
	ErrEmptyInquiry = errors.New("inquiry must contain at least one message")

	// ErrNotUserTurn is returned when the last inquiry message is not from
	// the user, so there is nothing for the model to answer.
	ErrNotUserTurn = errors.New("last inquiry message must have the user role")
)

// Assistant is a single conversation. It is not safe for concurrent use;
// callers serialize Run calls.
type Assistant struct {
	backend  llm.Backend
	tools    *tool.Registry
	params   llm.Params
	log      *logger.Logger
	hooks    *hook.Manager
	messages []llm.Message
}

type config struct {
	tools   []*tool.Capability
	store   *prompts.Store
	fill    map[string]string
	params  llm.Params
	history []llm.Message
	log     *logger.Logger
	hooks   *hook.Manager
}

type Option func(*config)

func WithTools(caps ...*tool.Capability) Option {
	return func(c *config) { c.tools = append(c.tools, caps...) }
}

// WithPrompts resolves a description that looks like a template reference
// (see prompts.IsReference) through store. fill is applied to the template.
func WithPrompts(store *prompts.Store, fill map[string]string) Option {
	return func(c *config) {
		c.store = store
		c.fill = fill
	}
}

// WithParams sets the sampling parameters used for every run.
func WithParams(opts ...llm.Option) Option {
	return func(c *config) { c.params = llm.NewParams(opts...) }
}

// WithHistory continues an earlier conversation. A leading system message in
// msgs is dropped in favor of the new description.
func WithHistory(msgs []llm.Message) Option {
	return func(c *config) { c.history = msgs }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

func WithHooks(m *hook.Manager) Option {
	return func(c *config) { c.hooks = m }
}

// New creates an assistant whose system message is description and
// configures backend with the tool catalog.
func New(ctx context.Context, description string, backend llm.Backend, opts ...Option) (*Assistant, error) {
	cfg := &config{log: logger.Discard()}
	for _, opt := range opts {
		opt(cfg)
	}

	registry, err := tool.NewRegistry(cfg.tools...)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	if cfg.store != nil && prompts.IsReference(description) {
		p, err := cfg.store.Get(ctx, description, cfg.fill)
		if err != nil {
			cfg.log.Warn("Prompt %s unavailable, using it as literal text: %v", description, err)
		} else {
			description = p
		}
	}

	backend.Configure(registry.Prompts())

	history := cfg.history
	if len(history) > 0 && history[0].Role == llm.RoleSystem {
		history = history[1:]
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.SystemMessage(description))
	messages = append(messages, history...)

	return &Assistant{
		backend:  backend,
		tools:    registry,
		params:   cfg.params,
		log:      cfg.log,
		hooks:    cfg.hooks,
		messages: messages,
	}, nil
}

// Messages returns a copy of the conversation so far.
func (a *Assistant) Messages() []llm.Message {
	return append([]llm.Message(nil), a.messages...)
}

// Tools returns the capabilities in catalog order.
func (a *Assistant) Tools() []*tool.Capability {
	return a.tools.List()
}

// Reset drops everything but the system message.
func (a *Assistant) Reset() {
	a.messages = a.messages[:1:1]
}
