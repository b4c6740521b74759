package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ramptix/leicht/pkg/llm"
)

// StreamingWriter writes assistant output, optionally colored
type StreamingWriter struct {
	writer    io.Writer
	colorMode bool
}

func NewStreamingWriter(w io.Writer) *StreamingWriter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamingWriter{
		writer:    w,
		colorMode: true,
	}
}

func (sw *StreamingWriter) SetColorMode(enabled bool) {
	sw.colorMode = enabled
}

// Write writes content to the output
func (sw *StreamingWriter) Write(content string) {
	fmt.Fprint(sw.writer, content)
}

// WriteLine writes a line to the output
func (sw *StreamingWriter) WriteLine(content string) {
	fmt.Fprintln(sw.writer, content)
}

// WriteColored writes colored content if color mode is enabled
func (sw *StreamingWriter) WriteColored(content, color string) {
	if sw.colorMode && content != "" {
		fmt.Fprintf(sw.writer, "%s%s%s", color, content, ColorReset)
	} else {
		fmt.Fprint(sw.writer, content)
	}
}

// ANSI Color codes
const (
	ColorReset = "\033[0m"
	ColorRed   = "\033[31m"
	ColorGreen = "\033[32m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[90m"
	ColorBold  = "\033[1m"
)

// StreamRenderer prints replies as they arrive and colors fenced code
// blocks. Fences split across chunks are tracked.
type StreamRenderer struct {
	writer *StreamingWriter
	inCode bool
	ticks  int
}

func NewStreamRenderer(writer *StreamingWriter) *StreamRenderer {
	return &StreamRenderer{writer: writer}
}

// RenderDelta renders one piece of content
func (sr *StreamRenderer) RenderDelta(content string) {
	var run strings.Builder
	flush := func() {
		if sr.inCode {
			sr.writer.WriteColored(run.String(), ColorCyan)
		} else {
			sr.writer.Write(run.String())
		}
		run.Reset()
	}

	for _, r := range content {
		if r != '`' {
			sr.ticks = 0
			run.WriteRune(r)
			continue
		}

		sr.ticks++
		run.WriteRune(r)
		if sr.ticks == 3 {
			sr.ticks = 0
			if sr.inCode {
				flush()
				sr.inCode = false
			} else {
				// The opening fence is part of the block. Ticks from an
				// earlier chunk have already been written.
				s := run.String()
				n := min(3, len(s)-len(strings.TrimRight(s, "`")))
				run.Reset()
				run.WriteString(s[:len(s)-n])
				flush()
				sr.inCode = true
				run.WriteString(s[len(s)-n:])
			}
		}
	}
	flush()
}

// RenderComplete ends the reply
func (sr *StreamRenderer) RenderComplete() {
	sr.writer.WriteLine("")
	sr.inCode = false
	sr.ticks = 0
}

// Render drains stream to the output and returns the collapsed response.
// Cancelling ctx stops reading and closes the stream.
func (sr *StreamRenderer) Render(ctx context.Context, stream *llm.Stream) (*llm.Response, error) {
	for chunk, err := range stream.Chunks() {
		if err != nil {
			sr.RenderComplete()
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			stream.Close()
			sr.RenderComplete()
			return nil, err
		}
		sr.RenderDelta(chunk.Content())
	}
	sr.RenderComplete()

	if resp := stream.Response(); resp != nil {
		return resp, nil
	}
	return nil, fmt.Errorf("stream ended without completing")
}

// RenderResponse prints a complete, non-streamed reply
func (sr *StreamRenderer) RenderResponse(resp *llm.Response) {
	sr.RenderDelta(resp.Content())
	sr.RenderComplete()
}
