package llm

import (
	"encoding/json"
	"fmt"
)

type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Index        int          `json:"index"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Message      Message      `json:"message"`
}

// Response is the provider-neutral shape of a completion.
type Response struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage   `json:"usage,omitempty"`

	// Metadata holds provider-specific fields that have no place in the
	// common shape (for example Groq's x_groq block).
	Metadata map[string]any `json:"-"`
}

// Message returns the first choice's message.
func (r *Response) Message() Message {
	if r == nil || len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}

// Content returns the first choice's text.
func (r *Response) Content() string {
	return r.Message().Content
}

// Decode unmarshals the first choice's content as JSON. Use it with
// responses produced in JSON mode.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal([]byte(r.Content()), v); err != nil {
		return fmt.Errorf("decode JSON content: %w", err)
	}
	return nil
}

// Delta is the incremental part of a streamed choice.
type Delta struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type ChunkChoice struct {
	Index        int          `json:"index"`
	Delta        Delta        `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// Chunk is one parsed server-sent event of a streamed completion.
type Chunk struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
	Choices           []ChunkChoice  `json:"choices"`
	Usage             *Usage         `json:"usage,omitempty"`
	Metadata          map[string]any `json:"-"`
}

// Content returns the first choice's delta text.
func (c *Chunk) Content() string {
	if c == nil || len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// Reply is what a Backend returns from Invoke. Exactly one field is set:
// Functions when the detector found tool calls, Stream for streamed
// completions and Response otherwise.
type Reply struct {
	Functions []FunctionCall
	Response  *Response
	Stream    *Stream
}

// HasFunctions reports whether the reply carries tool calls instead of a
// completion.
func (r *Reply) HasFunctions() bool {
	return r != nil && len(r.Functions) > 0
}
