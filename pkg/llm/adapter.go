package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ramptix/leicht/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/ramptix/leicht/pkg/llm")

// Adapter wraps a provider Sender with the common request protocol: default
// parameter merging, JSON mode checks and text-based tool detection.
type Adapter struct {
	sender   Sender
	defaults Params
	template string
	log      *logger.Logger

	tools []string
	// detector never has tools of its own, so a detection query cannot
	// trigger another detection. It uses detectSender, or sender when that
	// is nil, and detectDefaults in place of defaults.
	detector       *Adapter
	detectSender   Sender
	detectDefaults Params
}

// DefaultDetectionParams are the sampling settings of the detection channel
// unless WithDetector replaces them. Nothing is inherited from the main
// defaults, so a stop sequence or token limit meant for answers cannot cut a
// list of calls short.
func DefaultDetectionParams() Params {
	return NewParams(
		WithTemperature(0.9),
		WithTopP(0.9),
		WithExtra("frequency_penalty", 1.2),
	)
}

var (
	_ Backend   = (*Adapter)(nil)
	_ Completer = (*Adapter)(nil)
)

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDefaults sets the parameters merged under every request.
func WithDefaults(p Params) AdapterOption {
	return func(a *Adapter) { a.defaults = p }
}

// WithDetectionTemplate replaces the embedded detection prompt. The template
// may use the {messages}, {tools} and {most_commonly_used} placeholders.
func WithDetectionTemplate(t string) AdapterOption {
	return func(a *Adapter) {
		if t != "" {
			a.template = t
		}
	}
}

// WithDetector sends detection queries through sender with defaults p. A nil
// sender keeps the main sender. JSON mode in p is ignored.
func WithDetector(sender Sender, p Params) AdapterOption {
	return func(a *Adapter) {
		a.detectSender = sender
		a.detectDefaults = p
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *logger.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}

// WithTools configures the initial tool prompts.
func WithTools(tools ...string) AdapterOption {
	return func(a *Adapter) { a.tools = tools }
}

// NewAdapter builds an Adapter around sender.
func NewAdapter(sender Sender, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		sender:         sender,
		template:       DefaultDetectionTemplate,
		log:            logger.Discard(),
		detectDefaults: DefaultDetectionParams(),
	}
	for _, o := range opts {
		o(a)
	}
	a.Configure(a.tools)
	return a
}

// Sender returns the wrapped provider sender.
func (a *Adapter) Sender() Sender {
	return a.sender
}

// Configure replaces the tool prompts and rebuilds the detection sub-adapter,
// or drops it when tools is empty.
func (a *Adapter) Configure(tools []string) Backend {
	a.tools = append([]string(nil), tools...)
	if len(a.tools) == 0 {
		a.detector = nil
		return a
	}

	sender := a.detectSender
	if sender == nil {
		sender = a.sender
	}
	defaults := a.detectDefaults
	defaults.JSONMode = false
	a.detector = &Adapter{
		sender:   sender,
		defaults: defaults,
		template: a.template,
		log:      a.log,
	}
	return a
}

// Tools returns a copy of the configured tool prompts.
func (a *Adapter) Tools() []string {
	return append([]string(nil), a.tools...)
}

// Detector returns the detection sub-adapter, nil when no tools are set.
func (a *Adapter) Detector() *Adapter {
	return a.detector
}

// SuppressTools runs fn with tool detection disabled. The previous tool
// configuration is restored on return, including when fn panics.
func (a *Adapter) SuppressTools(fn func() error) error {
	saved := a.tools
	a.Configure(nil)
	defer a.Configure(saved)

	return fn()
}

// Invoke asks the detector whether the conversation implies tool calls and
// returns them as a function reply; otherwise it sends the request.
func (a *Adapter) Invoke(ctx context.Context, p *Payload) (*Reply, error) {
	ctx, span := tracer.Start(ctx, "llm.Invoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", a.sender.Provider()),
		attribute.Int("llm.tools", len(a.tools)),
	)

	if a.detector != nil {
		calls, err := DetectFunctionCalls(ctx, a.detector, a.template, p.Messages, a.tools)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("detect function calls: %w", err)
		}
		if len(calls) > 0 {
			a.log.Debug("Detector reported %d function call(s)", len(calls))
			span.SetAttributes(attribute.Int("llm.functions", len(calls)))
			return &Reply{Functions: calls}, nil
		}
	}

	reply, err := a.Send(ctx, p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return reply, nil
}

// Send merges the adapter defaults with p (p wins) and performs the request
// without tool detection.
func (a *Adapter) Send(ctx context.Context, p *Payload) (*Reply, error) {
	merged := p.Clone()
	merged.Params = a.defaults.Merge(p.Params)

	if merged.JSONMode && merged.Stream {
		return nil, fmt.Errorf("%s: %w", a.sender.Provider(), ErrJSONModeStream)
	}

	ctx, span := tracer.Start(ctx, "llm.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", a.sender.Provider()),
		attribute.String("llm.model", a.sender.Model()),
		attribute.Bool("llm.stream", merged.Stream),
	)

	a.log.Debug("Sending %d message(s) to %s (stream: %t)", len(merged.Messages), a.sender.Provider(), merged.Stream)

	if merged.Stream {
		stream, err := a.sender.Stream(ctx, merged)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return &Reply{Stream: stream}, nil
	}

	resp, err := a.sender.Send(ctx, merged)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if merged.JSONMode && !json.Valid([]byte(resp.Content())) {
		return nil, fmt.Errorf("%s: JSON mode response is not valid JSON: %s", a.sender.Provider(), logger.Clamp(resp.Content(), 80))
	}

	return &Reply{Response: resp}, nil
}
