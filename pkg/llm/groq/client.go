// Package groq sends completions to Groq's OpenAI-compatible endpoint and
// keeps the provider's x_groq metadata that generic clients drop.
package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ramptix/leicht/pkg/llm"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "mixtral-8x7b-32768"

	metadataKey = "x_groq"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for model. An empty model selects DefaultModel.
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() string { return "groq" }
func (c *Client) Model() string    { return c.model }

func (c *Client) Send(ctx context.Context, p *llm.Payload) (*llm.Response, error) {
	resp, err := c.post(ctx, p, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("groq: decode response: %w", err)
	}
	out.Response.Metadata = metadata(out.XGroq)
	return &out.Response, nil
}

func (c *Client) Stream(ctx context.Context, p *llm.Payload) (*llm.Stream, error) {
	resp, err := c.post(ctx, p, true)
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return llm.NewStream(func() (*llm.Chunk, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return nil, io.EOF
			}

			var chunk wireChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return nil, fmt.Errorf("groq: decode chunk: %w", err)
			}
			if chunk.Error != nil {
				return nil, &llm.APIError{Provider: c.Provider(), StatusCode: resp.StatusCode, Body: data}
			}
			chunk.Chunk.Metadata = metadata(chunk.XGroq)
			return &chunk.Chunk, nil
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("groq: read stream: %w", err)
		}
		return nil, io.EOF
	}, resp.Body.Close), nil
}

func (c *Client) post(ctx context.Context, p *llm.Payload, stream bool) (*http.Response, error) {
	body, err := json.Marshal(c.body(p, stream))
	if err != nil {
		return nil, fmt.Errorf("groq: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, &llm.APIError{Provider: c.Provider(), StatusCode: resp.StatusCode, Body: string(data)}
	}
	return resp, nil
}

// body builds the request document. Extra fields go first so the typed
// fields cannot be overwritten by them.
func (c *Client) body(p *llm.Payload, stream bool) map[string]any {
	b := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		b[k] = v
	}

	model := c.model
	if p.Model != "" {
		model = p.Model
	}
	b["model"] = model
	b["messages"] = p.Messages
	b["stream"] = stream

	if p.Temperature != nil {
		b["temperature"] = *p.Temperature
	}
	if p.MaxTokens != nil {
		b["max_tokens"] = *p.MaxTokens
	}
	if p.TopP != nil {
		b["top_p"] = *p.TopP
	}
	if len(p.Stop) > 0 {
		b["stop"] = p.Stop
	}
	if p.Seed != nil {
		b["seed"] = *p.Seed
	}
	if p.JSONMode {
		b["response_format"] = map[string]string{"type": "json_object"}
	}
	return b
}

type wireResponse struct {
	llm.Response
	XGroq json.RawMessage `json:"x_groq,omitempty"`
}

type wireChunk struct {
	llm.Chunk
	XGroq json.RawMessage `json:"x_groq,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

func metadata(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return map[string]any{metadataKey: v}
}
