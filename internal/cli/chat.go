package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ramptix/leicht/internal/session"
	"github.com/ramptix/leicht/pkg/assistant"
	"github.com/ramptix/leicht/pkg/llm"
	"github.com/ramptix/leicht/pkg/logger"
)

// Chat runs conversation turns against an assistant, renders the replies and
// records them in the session store.
type Chat struct {
	assistant *assistant.Assistant
	out       *StreamingWriter
	renderer  *StreamRenderer
	log       *logger.Logger
	stream    bool

	sessions  *session.Store
	sessionID string
	saved     int
	provider  string
	model     string
}

// ChatOption configures a Chat.
type ChatOption func(*Chat)

// WithStreaming renders replies while they arrive.
func WithStreaming(enabled bool) ChatOption {
	return func(c *Chat) { c.stream = enabled }
}

// WithSessions records the conversation in store. An empty id starts a new
// session on the first turn; otherwise turns are appended to the existing
// session, whose messages are expected to be loaded into the assistant.
func WithSessions(store *session.Store, id, provider, model string) ChatOption {
	return func(c *Chat) {
		c.sessions = store
		c.sessionID = id
		c.provider = provider
		c.model = model
	}
}

// WithChatLogger sets the logger used for errors in the interactive loop.
func WithChatLogger(l *logger.Logger) ChatOption {
	return func(c *Chat) {
		if l != nil {
			c.log = l
		}
	}
}

func NewChat(a *assistant.Assistant, out *StreamingWriter, opts ...ChatOption) *Chat {
	c := &Chat{
		assistant: a,
		out:       out,
		renderer:  NewStreamRenderer(out),
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID != "" {
		c.saved = len(a.Messages())
	}
	return c
}

// SessionID returns the id of the recording session, empty before the first
// recorded turn.
func (c *Chat) SessionID() string {
	return c.sessionID
}

// Ask runs one turn and prints the reply.
func (c *Chat) Ask(ctx context.Context, text string) error {
	var opts []assistant.RunOption
	if c.stream {
		opts = append(opts, assistant.WithStream())
	}

	reply, err := c.assistant.Run(ctx, text, opts...)
	if err != nil {
		return err
	}

	switch {
	case reply.Stream != nil:
		if _, err := c.renderer.Render(ctx, reply.Stream); err != nil {
			return err
		}
	case reply.Response != nil:
		c.renderer.RenderResponse(reply.Response)
	}

	return c.save(ctx)
}

// save appends the messages added since the last save.
func (c *Chat) save(ctx context.Context) error {
	if c.sessions == nil {
		return nil
	}

	if c.sessionID == "" {
		sess, err := c.sessions.Create(ctx, c.provider, c.model)
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		c.sessionID = sess.ID
		c.saved = 0
	}

	msgs := c.assistant.Messages()
	if c.saved > len(msgs) {
		c.saved = len(msgs)
	}
	if err := c.sessions.Append(ctx, c.sessionID, msgs[c.saved:]...); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.saved = len(msgs)
	return nil
}

// Loop reads inquiries line by line until EOF or /exit. Lines starting with
// a slash are commands; see /help. A failed turn is reported and the loop
// continues.
func (c *Chat) Loop(ctx context.Context, in *bufio.Reader) error {
	for {
		c.out.WriteColored("> ", ColorBold)

		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		text := strings.TrimSpace(line)

		if text != "" {
			if quit := c.handle(ctx, text); quit {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			c.out.WriteLine("")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Chat) handle(ctx context.Context, text string) (quit bool) {
	switch text {
	case "/exit", "/quit":
		return true
	case "/help":
		c.out.WriteLine("/tools    list the available tools")
		c.out.WriteLine("/history  show the conversation")
		c.out.WriteLine("/reset    start over with a new session")
		c.out.WriteLine("/exit     leave")
		return false
	case "/tools":
		for _, t := range c.assistant.Tools() {
			c.out.WriteColored(t.Name(), ColorGreen)
			c.out.WriteLine("  " + t.Description())
		}
		return false
	case "/history":
		for _, m := range c.assistant.Messages() {
			c.printMessage(m)
		}
		return false
	case "/reset":
		c.assistant.Reset()
		c.sessionID = ""
		c.out.WriteColored("Conversation reset.\n", ColorGray)
		return false
	}

	if strings.HasPrefix(text, "/") {
		c.out.WriteColored(fmt.Sprintf("Unknown command %s, try /help\n", text), ColorRed)
		return false
	}

	if err := c.Ask(ctx, text); err != nil {
		c.log.Error("%v", err)
	}
	return false
}

func (c *Chat) printMessage(m llm.Message) {
	color := ColorGray
	switch m.Role {
	case llm.RoleUser:
		color = ColorGreen
	case llm.RoleAssistant:
		color = ColorCyan
	}
	c.out.WriteColored(string(m.Role)+": ", color)
	c.out.WriteLine(m.Content)
}

// PrintMessages writes a transcript, as shown by /history.
func PrintMessages(out *StreamingWriter, msgs []llm.Message) {
	c := &Chat{out: out}
	for _, m := range msgs {
		c.printMessage(m)
	}
}
