package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ramptix/leicht/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClient("sk-test", "gpt-test", WithBaseURL(srv.URL+"/v1")), srv
}

func TestClient_Send(t *testing.T) {
	var got map[string]any
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "chatcmpl-9",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-test",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi!"}}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`)
	})

	temp, maxTokens := 0.5, 32
	resp, err := c.Send(context.Background(), &llm.Payload{
		Messages: []llm.Message{llm.SystemMessage("be brief"), llm.UserMessage("hello")},
		Params:   llm.Params{Temperature: &temp, MaxTokens: &maxTokens, Stop: []string{"\n\n"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-test", got["model"])
	assert.Equal(t, 0.5, got["temperature"])
	assert.Equal(t, float64(32), got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])

	assert.Equal(t, "chatcmpl-9", resp.ID)
	assert.Equal(t, "Hi!", resp.Content())
	assert.Equal(t, llm.RoleAssistant, resp.Message().Role)
	assert.Equal(t, llm.FinishReasonStop, resp.Choices[0].FinishReason)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestClient_SendJSONMode(t *testing.T) {
	var got map[string]any
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		fmt.Fprint(w, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"{}"}}]}`)
	})

	_, err := c.Send(context.Background(), &llm.Payload{
		Model:    "gpt-override",
		Messages: []llm.Message{llm.UserMessage("json please")},
		Params:   llm.NewParams(llm.WithJSONMode()),
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-override", got["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])
}

func TestClient_SendErrorStatus(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`)
	})

	_, err := c.Send(context.Background(), &llm.Payload{Messages: []llm.Message{llm.UserMessage("hi")}})

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Incorrect API key")
	assert.Equal(t, "openai", apiErr.Provider)
}

func TestClient_Stream(t *testing.T) {
	var got map[string]any
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range []string{
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"role":"assistant","content":"The "}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{"content":"answer"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-test","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", frame)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	stream, err := c.Stream(context.Background(), &llm.Payload{Messages: []llm.Message{llm.UserMessage("hi")}, Stream: true})
	require.NoError(t, err)
	assert.Equal(t, true, got["stream"])

	var parts []string
	for chunk, err := range stream.Chunks() {
		require.NoError(t, err)
		parts = append(parts, chunk.Content())
	}
	assert.Equal(t, []string{"The ", "answer", ""}, parts)

	resp := stream.Response()
	require.NotNil(t, resp)
	assert.Equal(t, "The answer", resp.Content())
	assert.Equal(t, llm.FinishReasonStop, resp.Choices[0].FinishReason)

	_, err = stream.Collect()
	assert.ErrorIs(t, err, llm.ErrStreamCompleted)
}

func TestClient_Identity(t *testing.T) {
	c := NewClient("k", "")
	assert.Equal(t, "openai", c.Provider())
	assert.Equal(t, DefaultModel, c.Model())
}

func TestClient_SendErrorKeepsNonJSONBody(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>upstream connect error: gateway-xyz</html>")
	})

	_, err := c.Send(context.Background(), &llm.Payload{Messages: []llm.Message{llm.UserMessage("hi")}})

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "<html>upstream connect error: gateway-xyz</html>", apiErr.Body)
}

func TestClient_SendExtraFields(t *testing.T) {
	var got map[string]any
	c, _ := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		got = body
		fmt.Fprint(w, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`)
	})

	_, err := c.Send(context.Background(), &llm.Payload{
		Messages: []llm.Message{llm.UserMessage("hi")},
		Params: llm.NewParams(
			llm.WithExtra("user", "u-1"),
			llm.WithExtra("frequency_penalty", 1.2),
			llm.WithExtra("presence_penalty", 0.5),
			llm.WithExtra("logit_bias", map[string]any{"50256": -100}),
			llm.WithExtra("unknown_field", "dropped"),
		),
	})
	require.NoError(t, err)

	assert.Equal(t, "u-1", got["user"])
	assert.InDelta(t, 1.2, got["frequency_penalty"], 1e-6)
	assert.InDelta(t, 0.5, got["presence_penalty"], 1e-6)
	assert.Equal(t, map[string]any{"50256": float64(-100)}, got["logit_bias"])
	assert.NotContains(t, got, "unknown_field")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient("sk-test", "gpt-test", WithBaseURL(srv.URL+"/v1"), WithTimeout(50*time.Millisecond))
	_, err := c.Send(context.Background(), &llm.Payload{Messages: []llm.Message{llm.UserMessage("hi")}})

	var netErr net.Error
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.True(t, netErr.Timeout())
}
