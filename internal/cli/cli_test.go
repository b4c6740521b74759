package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ramptix/leicht/internal/config"
	"github.com/ramptix/leicht/internal/session"
	"github.com/ramptix/leicht/pkg/assistant"
	"github.com/ramptix/leicht/pkg/hook"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/llm/anthropic"
	"github.com/ramptix/leicht/pkg/llm/groq"
	"github.com/ramptix/leicht/pkg/llm/openai"
	"github.com/ramptix/leicht/pkg/logger"
	"github.com/ramptix/leicht/pkg/tool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoSender answers detection prompts with null and everything else with
// "echo: <last message>", streamed in two chunks when asked to stream.
type echoSender struct{ requests int }

func (s *echoSender) reply(p *llm.Payload) string {
	s.requests++
	last := p.Messages[len(p.Messages)-1].Content
	if strings.Contains(last, "Given messages:") {
		return "null"
	}
	return "echo: " + last
}

func (s *echoSender) Send(ctx context.Context, p *llm.Payload) (*llm.Response, error) {
	return &llm.Response{Choices: []llm.Choice{{Message: llm.AssistantMessage(s.reply(p))}}}, nil
}

func (s *echoSender) Stream(ctx context.Context, p *llm.Payload) (*llm.Stream, error) {
	text := s.reply(p)
	parts := []string{text[:len(text)/2], text[len(text)/2:]}
	return llm.NewStream(func() (*llm.Chunk, error) {
		if len(parts) == 0 {
			return nil, io.EOF
		}
		c := &llm.Chunk{Choices: []llm.ChunkChoice{{Delta: llm.Delta{Content: parts[0]}}}}
		parts = parts[1:]
		return c, nil
	}, nil), nil
}

func (s *echoSender) Provider() string { return "echo" }
func (s *echoSender) Model() string    { return "echo-1" }

func plainWriter() (*StreamingWriter, *bytes.Buffer) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf)
	w.SetColorMode(false)
	return w, &buf
}

func newAssistant(t *testing.T, sender llm.Sender, opts ...assistant.Option) *assistant.Assistant {
	t.Helper()
	a, err := assistant.New(context.Background(), "sys", llm.NewAdapter(sender), opts...)
	require.NoError(t, err)
	return a
}

func TestStreamRenderer_ColorsCodeBlocks(t *testing.T) {
	var buf bytes.Buffer
	r := NewStreamRenderer(NewStreamingWriter(&buf))

	r.RenderDelta("Run:\n``")
	r.RenderDelta("`sh\nls\n```\ndone")
	r.RenderComplete()

	out := buf.String()
	assert.Contains(t, out, ColorCyan)
	assert.True(t, strings.HasPrefix(out, "Run:\n``"))
	assert.Contains(t, out, ColorCyan+"`sh\nls\n```"+ColorReset)
	assert.True(t, strings.HasSuffix(out, "\ndone\n"))
}

func TestStreamRenderer_Plain(t *testing.T) {
	w, buf := plainWriter()
	r := NewStreamRenderer(w)

	r.RenderDelta("a ```go\nx\n``` b")
	r.RenderComplete()
	assert.Equal(t, "a ```go\nx\n``` b\n", buf.String())
}

func TestStreamRenderer_Render(t *testing.T) {
	w, buf := plainWriter()
	parts := []string{"Hel", "lo"}
	stream := llm.NewStream(func() (*llm.Chunk, error) {
		if len(parts) == 0 {
			return nil, io.EOF
		}
		c := &llm.Chunk{Choices: []llm.ChunkChoice{{Delta: llm.Delta{Content: parts[0]}}}}
		parts = parts[1:]
		return c, nil
	}, nil)

	resp, err := NewStreamRenderer(w).Render(context.Background(), stream)
	require.NoError(t, err)
	assert.Equal(t, "Hello", resp.Content())
	assert.Equal(t, "Hello\n", buf.String())
}

func TestStreamRenderer_RenderCancelled(t *testing.T) {
	w, _ := plainWriter()
	closed := false
	stream := llm.NewStream(func() (*llm.Chunk, error) {
		return &llm.Chunk{Choices: []llm.ChunkChoice{{Delta: llm.Delta{Content: "x"}}}}, nil
	}, func() error { closed = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStreamRenderer(w).Render(ctx, stream)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, closed)
}

func TestChat_AskRecordsSession(t *testing.T) {
	ctx := context.Background()
	store, err := session.Open(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, stream := range []bool{false, true} {
		t.Run(fmt.Sprintf("stream=%t", stream), func(t *testing.T) {
			w, buf := plainWriter()
			a := newAssistant(t, &echoSender{})
			chat := NewChat(a, w, WithStreaming(stream), WithSessions(store, "", "echo", "echo-1"))

			require.NoError(t, chat.Ask(ctx, "hi"))
			require.NoError(t, chat.Ask(ctx, "again"))
			assert.Equal(t, "echo: hi\necho: again\n", buf.String())

			require.NotEmpty(t, chat.SessionID())
			msgs, err := store.Messages(ctx, chat.SessionID())
			require.NoError(t, err)
			assert.Equal(t, a.Messages(), msgs)
			assert.Len(t, msgs, 5)
		})
	}
}

func TestChat_ResumeAppendsOnlyNewMessages(t *testing.T) {
	ctx := context.Background()
	store, err := session.Open(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	defer store.Close()

	sess, err := store.Create(ctx, "echo", "echo-1")
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, sess.ID, llm.SystemMessage("sys"), llm.UserMessage("q"), llm.AssistantMessage("a")))
	history, err := store.Messages(ctx, sess.ID)
	require.NoError(t, err)

	w, _ := plainWriter()
	a := newAssistant(t, &echoSender{}, assistant.WithHistory(history))
	chat := NewChat(a, w, WithSessions(store, sess.ID, "echo", "echo-1"))
	require.NoError(t, chat.Ask(ctx, "more"))

	msgs, err := store.Messages(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 5)
	assert.Equal(t, llm.AssistantMessage("echo: more"), msgs[4])
}

func TestChat_Loop(t *testing.T) {
	w, buf := plainWriter()
	echoTool := tool.Must(tool.New(tool.Definition{
		Name:    "ping",
		Doc:     "Answers pong.",
		Handler: func(ctx context.Context, args tool.Values) (any, error) { return "pong", nil },
	}))
	sender := &echoSender{}
	a := newAssistant(t, sender, assistant.WithTools(echoTool))
	chat := NewChat(a, w)

	// One detection request and one completion for "hello".
	in := bufio.NewReader(strings.NewReader("/tools\nhello\n/bogus\n/history\n/reset\n/exit\nignored\n"))
	require.NoError(t, chat.Loop(context.Background(), in))

	out := buf.String()
	assert.Contains(t, out, "ping  Answers pong.")
	assert.Contains(t, out, "echo: hello")
	assert.Contains(t, out, "Unknown command /bogus")
	assert.Contains(t, out, "user: hello")
	assert.Contains(t, out, "Conversation reset.")
	assert.NotContains(t, out, "ignored")
	assert.Equal(t, 2, sender.requests)
	assert.Len(t, a.Messages(), 1)
}

func TestChat_LoopEOF(t *testing.T) {
	w, buf := plainWriter()
	a := newAssistant(t, &echoSender{})
	chat := NewChat(a, w)

	require.NoError(t, chat.Loop(context.Background(), bufio.NewReader(strings.NewReader("last words"))))
	assert.Contains(t, buf.String(), "echo: last words")
}

func TestNewSender(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewSender(&config.Config{Provider: config.ProviderOpenAI})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	s, err := NewSender(&config.Config{Provider: config.ProviderOpenAI, APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, s)
	assert.Equal(t, "gpt-4o", s.Model())

	s, err = NewSender(&config.Config{Provider: config.ProviderGroq, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &groq.Client{}, s)
	assert.Equal(t, groq.DefaultModel, s.Model())

	s, err = NewSender(&config.Config{Provider: config.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &anthropic.Client{}, s)

	_, err = NewSender(&config.Config{Provider: "ollama", APIKey: "k"})
	assert.Error(t, err)
}

func TestNewHooks(t *testing.T) {
	assert.Nil(t, NewHooks(config.HooksConfig{}, strings.NewReader(""), io.Discard))

	var out bytes.Buffer
	m := NewHooks(config.HooksConfig{ShellConfirm: true}, strings.NewReader("n\n"), &out)
	require.NotNil(t, m)
	assert.True(t, m.HasHandlers(hook.BeforeToolExecution))

	fb, err := m.Trigger(context.Background(), hook.NewEvent(hook.BeforeToolExecution, "read_file", `"x"`))
	require.NoError(t, err)
	assert.True(t, fb.Allow)

	fb, err = m.Trigger(context.Background(), hook.NewEvent(hook.BeforeToolExecution, "bash", `"rm -rf /"`))
	require.NoError(t, err)
	assert.False(t, fb.Allow)
	assert.Contains(t, out.String(), `bash("rm -rf /")`)
}

func TestNewApp(t *testing.T) {
	off := false
	cfg := &config.Config{
		Provider: "openai",
		System:   "You are terse.",
		Prompts:  config.PromptsConfig{Dir: t.TempDir()},
		Session:  config.SessionConfig{Path: filepath.Join(t.TempDir(), "s.db")},
		Tools:    config.ToolsConfig{Builtin: &off},
	}

	app, err := NewApp(context.Background(), cfg, logger.Discard(), &echoSender{}, AppOptions{})
	require.NoError(t, err)
	defer app.Close()

	assert.Empty(t, app.Assistant.Tools())
	assert.Equal(t, "You are terse.", app.Assistant.Messages()[0].Content)
	assert.NotNil(t, app.Sessions)

	cfg.Tools.Builtin = nil
	app2, err := NewApp(context.Background(), cfg, logger.Discard(), &echoSender{}, AppOptions{ResumeID: "missing"})
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Nil(t, app2)
}

func TestNewBackend_Detection(t *testing.T) {
	tools := []string{"get_time()\nTime.\nNo args."}
	sender := &echoSender{}

	b, err := NewBackend(&config.Config{Provider: config.ProviderOpenAI}, sender, nil)
	require.NoError(t, err)
	b.Configure(tools)
	assert.Same(t, sender, b.Detector().Sender())

	cfg := &config.Config{
		Provider:  config.ProviderOpenAI,
		APIKey:    "sk-main",
		Detection: config.DetectionConfig{Model: "gpt-4o-mini"},
	}
	b, err = NewBackend(cfg, sender, nil)
	require.NoError(t, err)
	b.Configure(tools)
	assert.IsType(t, &openai.Client{}, b.Detector().Sender())
	assert.Equal(t, "gpt-4o-mini", b.Detector().Sender().Model())

	t.Setenv("GROQ_API_KEY", "")
	cfg.Detection = config.DetectionConfig{Provider: config.ProviderGroq}
	_, err = NewBackend(cfg, sender, nil)
	assert.ErrorContains(t, err, "GROQ_API_KEY")
}
