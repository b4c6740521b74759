// Package openai sends completions to OpenAI and to any endpoint that speaks
// the same chat-completions protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ramptix/leicht/pkg/llm"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

type Client struct {
	client *openai.Client
	model  string
}

type Option func(*openai.ClientConfig)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *openai.ClientConfig) {
		if url != "" {
			c.BaseURL = url
		}
	}
}

// WithTimeout bounds every request, streaming ones included.
func WithTimeout(d time.Duration) Option {
	return func(c *openai.ClientConfig) {
		if d > 0 {
			c.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *openai.ClientConfig) { c.HTTPClient = hc }
}

// NewClient creates a client for model. An empty model selects DefaultModel.
func NewClient(apiKey, model string, opts ...Option) *Client {
	config := openai.DefaultConfig(apiKey)
	for _, opt := range opts {
		opt(&config)
	}
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) Send(ctx context.Context, p *llm.Payload) (*llm.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.request(p, false))
	if err != nil {
		return nil, c.wrapError(err)
	}
	return convertResponse(resp), nil
}

func (c *Client) Stream(ctx context.Context, p *llm.Payload) (*llm.Stream, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, c.request(p, true))
	if err != nil {
		return nil, c.wrapError(err)
	}

	return llm.NewStream(func() (*llm.Chunk, error) {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, c.wrapError(err)
		}
		return convertChunk(resp), nil
	}, stream.Close), nil
}

func (c *Client) Provider() string {
	return "openai"
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) request(p *llm.Payload, stream bool) openai.ChatCompletionRequest {
	model := c.model
	if p.Model != "" {
		model = p.Model
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(p.Messages),
		Stream:   stream,
		Stop:     p.Stop,
		Seed:     p.Seed,
	}
	if p.Temperature != nil {
		req.Temperature = float32(*p.Temperature)
	}
	if p.TopP != nil {
		req.TopP = float32(*p.TopP)
	}
	if p.MaxTokens != nil {
		req.MaxTokens = *p.MaxTokens
	}
	if p.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if stream {
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	applyExtra(&req, p.Extra)
	return req
}

// applyExtra maps the Extra keys the chat completions request has fields
// for: user, frequency_penalty, presence_penalty, logit_bias, logprobs and
// top_logprobs. Other keys and values of the wrong type are ignored.
func applyExtra(req *openai.ChatCompletionRequest, extra map[string]any) {
	if user, ok := extra["user"].(string); ok {
		req.User = user
	}
	if v, ok := number(extra["frequency_penalty"]); ok {
		req.FrequencyPenalty = float32(v)
	}
	if v, ok := number(extra["presence_penalty"]); ok {
		req.PresencePenalty = float32(v)
	}
	if v, ok := extra["logprobs"].(bool); ok {
		req.LogProbs = v
	}
	if v, ok := number(extra["top_logprobs"]); ok {
		req.TopLogProbs = int(v)
	}

	switch bias := extra["logit_bias"].(type) {
	case map[string]int:
		req.LogitBias = bias
	case map[string]any:
		req.LogitBias = make(map[string]int, len(bias))
		for token, b := range bias {
			if v, ok := number(b); ok {
				req.LogitBias[token] = int(v)
			}
		}
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// wrapError turns HTTP failures into *llm.APIError so callers see one error
// type across providers.
func (c *Client) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{Provider: c.Provider(), StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	// Error bodies that are not JSON, such as a proxy's HTML page, end up
	// here with the raw body attached.
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &llm.APIError{Provider: c.Provider(), StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("%s: %w", c.Provider(), err)
}

func convertMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return result
}

func convertResponse(resp openai.ChatCompletionResponse) *llm.Response {
	out := &llm.Response{
		ID:                resp.ID,
		Object:            resp.Object,
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		Choices:           make([]llm.Choice, len(resp.Choices)),
		Usage: &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for i, ch := range resp.Choices {
		out.Choices[i] = llm.Choice{
			Index:        ch.Index,
			FinishReason: llm.FinishReason(ch.FinishReason),
			Message: llm.Message{
				Role:    llm.Role(ch.Message.Role),
				Content: ch.Message.Content,
			},
		}
	}
	return out
}

func convertChunk(resp openai.ChatCompletionStreamResponse) *llm.Chunk {
	out := &llm.Chunk{
		ID:                resp.ID,
		Object:            resp.Object,
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		Choices:           make([]llm.ChunkChoice, len(resp.Choices)),
	}
	for i, ch := range resp.Choices {
		out.Choices[i] = llm.ChunkChoice{
			Index:        ch.Index,
			FinishReason: llm.FinishReason(ch.FinishReason),
			Delta: llm.Delta{
				Role:    llm.Role(ch.Delta.Role),
				Content: ch.Delta.Content,
			},
		}
	}
	if resp.Usage != nil {
		out.Usage = &llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out
}
