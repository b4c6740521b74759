// Package logger provides the colored, leveled console logger used by the
// assistant, the backend adapters and the CLI.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// Level represents the log level
type Level int

const (
	LevelDebug  Level = iota // Debug information (only shown with --verbose)
	LevelInfo                // Important steps
	LevelTool                // Tool call related
	LevelAgent               // Assistant response
	LevelError               // Error messages
	LevelSilent              // Nothing at all
)

// ANSI color codes for terminal output
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorGray    = "\033[90m"
	ColorBold    = "\033[1m"
)

// Logger provides structured console logging for conversations
type Logger struct {
	writer    io.Writer
	level     Level
	showTime  bool
	colorMode bool
}

// NewLogger creates a new Logger instance
func NewLogger(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stdout
	}
	return &Logger{
		writer:    w,
		level:     level,
		showTime:  true,
		colorMode: true,
	}
}

// Discard returns a logger that writes nothing. It is the library default.
func Discard() *Logger {
	return &Logger{writer: io.Discard, level: LevelSilent}
}

// SetColorMode enables or disables colored output
func (l *Logger) SetColorMode(enabled bool) {
	l.colorMode = enabled
}

// SetShowTime enables or disables timestamp display
func (l *Logger) SetShowTime(enabled bool) {
	l.showTime = enabled
}

// Debug logs debug information (only shown in verbose mode)
func (l *Logger) Debug(format string, args ...any) {
	if l.level <= LevelDebug {
		l.log(ColorGray, "DEBUG", format, args...)
	}
}

// Info logs general information
func (l *Logger) Info(format string, args ...any) {
	if l.level <= LevelInfo {
		l.log(ColorBlue, "INFO", format, args...)
	}
}

// Warn logs recoverable problems, such as a skipped MCP tool.
func (l *Logger) Warn(format string, args ...any) {
	if l.level <= LevelError {
		l.log(ColorYellow, "WARN", format, args...)
	}
}

// Error logs error messages
func (l *Logger) Error(format string, args ...any) {
	if l.level <= LevelError {
		l.log(ColorRed, "ERROR", format, args...)
	}
}

// AgentResponse logs the assistant's final answer
func (l *Logger) AgentResponse(content string) {
	if l.level <= LevelAgent {
		l.printSection(ColorGreen, "💬 Assistant", content)
	}
}

// ToolCall logs a detected call with its raw argument text
func (l *Logger) ToolCall(toolName string, args string) {
	if l.level <= LevelTool {
		l.printSection(ColorCyan, fmt.Sprintf("🔧 Tool Call: %s", toolName), fmt.Sprintf("%s(%s)", toolName, args))
	}
}

// ToolResult logs a tool execution result
func (l *Logger) ToolResult(toolName string, success bool, output string, duration time.Duration) {
	if l.level <= LevelTool {
		status := "✅ Success"
		color := ColorGreen
		if !success {
			status = "❌ Failed"
			color = ColorRed
		}

		// At most two lines and 500 characters
		const maxLines = 2
		const maxLength = 500

		lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
		displayOutput := output
		truncatedLines := false

		if len(lines) > maxLines {
			displayOutput = strings.Join(lines[:maxLines], "\n")
			truncatedLines = true
		}

		if utf8.RuneCountInString(displayOutput) > maxLength {
			displayOutput = Clamp(displayOutput, maxLength)
		} else if truncatedLines {
			displayOutput += "\n..."
		}

		header := fmt.Sprintf("📊 Tool Result: %s [%s] (%s)", toolName, status, duration)
		l.printSection(color, header, displayOutput)
	}
}

// SessionStart logs the beginning of a run
func (l *Logger) SessionStart(inquiry string) {
	if l.level <= LevelInfo {
		l.printBanner(ColorCyan, "🚀 Run Started", Clamp(inquiry, 120))
	}
}

// SessionEnd logs the completion of a run with statistics
func (l *Logger) SessionEnd(duration time.Duration, toolCallCount int) {
	if l.level <= LevelInfo {
		summary := fmt.Sprintf("Duration: %s | Tool Calls: %d", duration.Round(time.Millisecond), toolCallCount)
		l.printBanner(ColorGreen, "✨ Run Completed", summary)
	}
}

// Clamp shortens t to at most m runes, marking the cut with an ellipsis.
func Clamp(t string, m int) string {
	if utf8.RuneCountInString(t) <= m {
		return t
	}
	runes := []rune(t)
	return string(runes[:m]) + "…"
}

// log is the core logging method
func (l *Logger) log(color, level, format string, args ...any) {
	timestamp := ""
	if l.showTime {
		timestamp = time.Now().Format("15:04:05") + " "
	}

	msg := fmt.Sprintf(format, args...)

	if l.colorMode {
		fmt.Fprintf(l.writer, "%s%s[%s]%s %s\n",
			color, timestamp, level, ColorReset, msg)
	} else {
		fmt.Fprintf(l.writer, "%s[%s] %s\n", timestamp, level, msg)
	}
}

// printSection prints a formatted section with header and content
func (l *Logger) printSection(color, header, content string) {
	separator := strings.Repeat("─", 60)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, header, ColorReset)
		fmt.Fprintf(l.writer, "%s%s%s\n", color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s\n", content)
		fmt.Fprintf(l.writer, "%s%s%s\n\n", color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n%s\n%s\n%s\n\n", header, separator, content, separator)
	}
}

// printBanner prints a prominent banner for run start/end
func (l *Logger) printBanner(color, title, subtitle string) {
	separator := strings.Repeat("═", 70)

	if l.colorMode {
		fmt.Fprintf(l.writer, "\n%s%s%s%s\n", ColorBold, color, separator, ColorReset)
		fmt.Fprintf(l.writer, "%s%s  %s%s\n", ColorBold, color, title, ColorReset)
		if subtitle != "" {
			fmt.Fprintf(l.writer, "%s  %s%s\n", color, subtitle, ColorReset)
		}
		fmt.Fprintf(l.writer, "%s%s%s%s\n\n", ColorBold, color, separator, ColorReset)
	} else {
		fmt.Fprintf(l.writer, "\n%s\n  %s\n", separator, title)
		if subtitle != "" {
			fmt.Fprintf(l.writer, "  %s\n", subtitle)
		}
		fmt.Fprintf(l.writer, "%s\n\n", separator)
	}
}
