// Package anthropic sends completions to the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ramptix/leicht/pkg/llm"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 1024
)

// ErrJSONMode is returned for payloads that ask for JSON mode, which the
// Messages API has no switch for.
var ErrJSONMode = errors.New("anthropic: JSON mode is not supported")

type Client struct {
	client *anthropic.Client
	model  string
}

type Option func(*[]option.RequestOption)

func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) {
		if url != "" {
			*o = append(*o, option.WithBaseURL(url))
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *[]option.RequestOption) {
		if d > 0 {
			*o = append(*o, option.WithRequestTimeout(d))
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *[]option.RequestOption) {
		*o = append(*o, option.WithHTTPClient(hc))
	}
}

// WithMaxRetries sets how often the SDK retries rate limits and 5xx answers.
func WithMaxRetries(n int) Option {
	return func(o *[]option.RequestOption) {
		*o = append(*o, option.WithMaxRetries(n))
	}
}

// NewClient creates a client for model. An empty model selects DefaultModel.
func NewClient(apiKey, model string, opts ...Option) *Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(&reqOpts)
	}
	if model == "" {
		model = DefaultModel
	}

	client := anthropic.NewClient(reqOpts...)
	return &Client{client: &client, model: model}
}

func (c *Client) Provider() string { return "anthropic" }
func (c *Client) Model() string    { return c.model }

func (c *Client) Send(ctx context.Context, p *llm.Payload) (*llm.Response, error) {
	params, err := c.params(p)
	if err != nil {
		return nil, err
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, wrapError(err)
	}
	return fromAnthropicMessage(msg), nil
}

func (c *Client) Stream(ctx context.Context, p *llm.Payload) (*llm.Stream, error) {
	params, err := c.params(p)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	var id, model string

	return llm.NewStream(func() (*llm.Chunk, error) {
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				id, model = ev.Message.ID, string(ev.Message.Model)
			case anthropic.ContentBlockDeltaEvent:
				if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
					return newChunk(id, model, d.Text, ""), nil
				}
			case anthropic.MessageDeltaEvent:
				chunk := newChunk(id, model, "", finishReason(ev.Delta.StopReason))
				chunk.Usage = &llm.Usage{CompletionTokens: int(ev.Usage.OutputTokens), TotalTokens: int(ev.Usage.OutputTokens)}
				return chunk, nil
			}
		}
		if err := stream.Err(); err != nil {
			return nil, wrapError(err)
		}
		return nil, io.EOF
	}, stream.Close), nil
}

// params builds the request. Payload Extra keys are not sent.
func (c *Client) params(p *llm.Payload) (anthropic.MessageNewParams, error) {
	if p.JSONMode {
		return anthropic.MessageNewParams{}, ErrJSONMode
	}

	model := c.model
	if p.Model != "" {
		model = p.Model
	}
	maxTokens := int64(DefaultMaxTokens)
	if p.MaxTokens != nil {
		maxTokens = int64(*p.MaxTokens)
	}

	system, messages := toAnthropicMessages(p.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if p.Temperature != nil {
		params.Temperature = anthropic.Float(*p.Temperature)
	}
	if p.TopP != nil {
		params.TopP = anthropic.Float(*p.TopP)
	}
	if len(p.Stop) > 0 {
		params.StopSequences = p.Stop
	}
	return params, nil
}

// toAnthropicMessages lifts the leading system messages into the system
// prompt. Later system messages, such as recorded tool results, are sent as
// user turns, and consecutive turns of one role are joined since the API
// expects user and assistant to alternate.
func toAnthropicMessages(msgs []llm.Message) (string, []anthropic.MessageParam) {
	var system []string
	i := 0
	for ; i < len(msgs) && msgs[i].Role == llm.RoleSystem; i++ {
		system = append(system, msgs[i].Content)
	}

	type turn struct {
		role  llm.Role
		parts []string
	}
	var turns []turn
	for _, m := range msgs[i:] {
		role := m.Role
		if role != llm.RoleAssistant {
			role = llm.RoleUser
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, m.Content)
			continue
		}
		turns = append(turns, turn{role: role, parts: []string{m.Content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == llm.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}

func fromAnthropicMessage(msg *anthropic.Message) *llm.Response {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &llm.Response{
		ID:     msg.ID,
		Object: "chat.completion",
		Model:  string(msg.Model),
		Choices: []llm.Choice{{
			FinishReason: finishReason(msg.StopReason),
			Message:      llm.AssistantMessage(text.String()),
		}},
		Usage: &llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}
}

func newChunk(id, model, text string, finish llm.FinishReason) *llm.Chunk {
	return &llm.Chunk{
		ID:     id,
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []llm.ChunkChoice{{
			Delta:        llm.Delta{Content: text},
			FinishReason: finish,
		}},
	}
}

func finishReason(r anthropic.StopReason) llm.FinishReason {
	switch r {
	case "":
		return ""
	case anthropic.StopReasonMaxTokens:
		return llm.FinishReasonLength
	default:
		return llm.FinishReasonStop
	}
}

func wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: "anthropic", StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
	}
	return fmt.Errorf("anthropic: %w", err)
}
