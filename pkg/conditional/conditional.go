// Package conditional asks a model to judge a piece of text and answer with
// true or false.
package conditional

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/logger"
	"github.com/ramptix/leicht/pkg/prompts"
)

// ErrUnexpectedReply is returned when the model answers with anything other
// than true, false or null.
var ErrUnexpectedReply = errors.New("LLM did not reply with 'true', 'false' or 'null'")

// Conditional is a reusable self-check. The prompt is either literal text or
// a template reference resolved through a prompts.Store.
type Conditional struct {
	prompt  string
	fillTo  string
	note    string
	fill    map[string]string
	backend llm.Completer
	store   *prompts.Store
}

type Option func(*Conditional)

// WithNote describes what the check does. It only shows up in String.
func WithNote(note string) Option {
	return func(c *Conditional) { c.note = note }
}

// WithFill sets additional placeholder values.
func WithFill(fill map[string]string) Option {
	return func(c *Conditional) {
		for k, v := range fill {
			c.fill[k] = v
		}
	}
}

// WithPrompts resolves template references through store.
func WithPrompts(store *prompts.Store) Option {
	return func(c *Conditional) { c.store = store }
}

// New creates a check. fillTo names the placeholder that receives the text
// being checked; surrounding braces are optional.
func New(backend llm.Completer, prompt, fillTo string, opts ...Option) *Conditional {
	c := &Conditional{
		prompt:  prompt,
		fillTo:  strings.Trim(fillTo, "{}"),
		fill:    map[string]string{},
		backend: backend,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fills text into the prompt, asks the model and interprets the first
// word of its reply. null counts as false.
func (c *Conditional) Check(ctx context.Context, text string) (bool, error) {
	fill := make(map[string]string, len(c.fill)+1)
	for k, v := range c.fill {
		fill[k] = v
	}
	fill[c.fillTo] = text

	prompt, err := c.resolve(ctx, fill)
	if err != nil {
		return false, err
	}

	reply, err := c.backend.Send(ctx, &llm.Payload{
		Messages: []llm.Message{llm.UserMessage(prompt)},
	})
	if err != nil {
		return false, fmt.Errorf("conditional: %w", err)
	}
	if reply.Response == nil {
		return false, fmt.Errorf("conditional: %w: empty response", ErrUnexpectedReply)
	}

	return Parse(reply.Response.Content())
}

func (c *Conditional) resolve(ctx context.Context, fill map[string]string) (string, error) {
	if c.store != nil && prompts.IsReference(c.prompt) {
		p, err := c.store.Get(ctx, c.prompt, fill)
		if err != nil {
			return "", fmt.Errorf("conditional: %w", err)
		}
		return p, nil
	}
	return prompts.Fill(c.prompt, fill), nil
}

// Parse normalizes a reply to its first line, up to the first period,
// trimmed and lower-cased, and maps it to a boolean.
func Parse(content string) (bool, error) {
	word := content
	if i := strings.IndexAny(word, "\r\n"); i >= 0 {
		word = word[:i]
	}
	if i := strings.IndexByte(word, '.'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(strings.TrimSpace(word))

	switch word {
	case "true":
		return true, nil
	case "false", "null":
		return false, nil
	}
	return false, fmt.Errorf("%w: got %q", ErrUnexpectedReply, logger.Clamp(word, 21))
}

func (c *Conditional) String() string {
	if c.note == "" {
		return fmt.Sprintf("Conditional(%q)", logger.Clamp(c.prompt, 21))
	}
	return fmt.Sprintf("Conditional(%q, %q)", logger.Clamp(c.prompt, 21), logger.Clamp(c.note, 81))
}
