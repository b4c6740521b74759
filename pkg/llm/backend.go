package llm

import "context"

// Sender performs the provider-specific exchange with a completion endpoint.
// The payload it receives has already been merged with adapter defaults.
type Sender interface {
	// Send issues a non-streaming completion request.
	Send(ctx context.Context, p *Payload) (*Response, error)

	// Stream issues a streaming completion request. The returned stream is
	// lazy: no chunk is read until the caller iterates it.
	Stream(ctx context.Context, p *Payload) (*Stream, error)

	Provider() string
	Model() string
}

// Completer issues a single completion request and never runs tool
// detection. *Adapter implements it.
type Completer interface {
	Send(ctx context.Context, p *Payload) (*Reply, error)
}

// Backend is the surface the assistant drives. The set of implementations is
// closed: every provider is wrapped in an *Adapter.
type Backend interface {
	// Invoke runs tool detection when tools are configured and otherwise
	// sends the completion request.
	Invoke(ctx context.Context, p *Payload) (*Reply, error)

	// Configure replaces the tool prompts. An empty list disables detection.
	Configure(tools []string) Backend

	// Tools returns a copy of the configured tool prompts.
	Tools() []string

	// SuppressTools runs fn with detection disabled and restores the prior
	// tool configuration afterwards, even when fn fails or panics.
	SuppressTools(fn func() error) error
}
