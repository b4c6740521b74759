package hook

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// ConfirmHandler asks on the terminal before a tool runs.
type ConfirmHandler struct {
	reader *bufio.Reader
	writer io.Writer
	tools  map[string]bool // empty means all tools
}

// NewConfirmHandler confirms the named tools, or every tool when none are
// given.
func NewConfirmHandler(tools ...string) *ConfirmHandler {
	return NewConfirmHandlerWithIO(os.Stdin, os.Stdout, tools...)
}

func NewConfirmHandlerWithIO(r io.Reader, w io.Writer, tools ...string) *ConfirmHandler {
	names := make(map[string]bool, len(tools))
	for _, t := range tools {
		names[t] = true
	}
	return &ConfirmHandler{
		reader: bufio.NewReader(r),
		writer: w,
		tools:  names,
	}
}

func (h *ConfirmHandler) Name() string {
	return "tool_confirm"
}

func (h *ConfirmHandler) Points() []Point {
	return []Point{BeforeToolExecution}
}

func (h *ConfirmHandler) Priority() int {
	return 100
}

func (h *ConfirmHandler) Handle(ctx context.Context, ev *Event) (*Feedback, error) {
	if len(h.tools) > 0 && !h.tools[ev.Tool] {
		return Allow(), nil
	}

	fmt.Fprintf(h.writer, "\n\033[33m⚠️  Tool call requires confirmation:\033[0m\n")
	fmt.Fprintf(h.writer, "    \033[1m%s(%s)\033[0m\n\n", ev.Tool, ev.Args)
	fmt.Fprintf(h.writer, "Allow? [y/N]: ")

	line, err := h.reader.ReadString('\n')
	if err != nil && line == "" {
		return Deny("No input received"), nil
	}

	switch strings.TrimSpace(strings.ToLower(line)) {
	case "y", "yes":
		fmt.Fprintf(h.writer, "\033[32m✓ Allowed\033[0m\n\n")
		return Allow(), nil
	default:
		fmt.Fprintf(h.writer, "\033[31m✗ Denied\033[0m\n\n")
		return Deny("User denied tool execution"), nil
	}
}
