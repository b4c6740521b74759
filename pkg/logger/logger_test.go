package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, "short", Clamp("short", 21))
	assert.Equal(t, "abc…", Clamp("abcdef", 3))
	assert.Equal(t, "héllo", Clamp("héllo", 5))
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, LevelInfo)
	log.SetColorMode(false)
	log.SetShowTime(false)

	log.Debug("hidden %d", 1)
	log.Info("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown 2")
}

func TestLogger_ToolResultTruncatesLines(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, LevelDebug)
	log.SetColorMode(false)

	log.ToolResult("get_time", true, "a\nb\nc\nd", time.Millisecond)

	out := buf.String()
	assert.Contains(t, out, "Tool Result: get_time")
	assert.Contains(t, out, "a\nb\n...")
	assert.False(t, strings.Contains(out, "\nc\n"))
}

func TestDiscard_WritesNothing(t *testing.T) {
	log := Discard()
	log.Error("boom")
	log.AgentResponse("hello")
	log.SessionStart("x")
}
