package llm

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
)

// DefaultDetectionTemplate is the prompt used to ask the detection channel
// for function calls.
//
//go:embed functions.md
var DefaultDetectionTemplate string

var callPattern = regexp.MustCompile(`^((?:[A-Za-z_]|\\_)(?:[A-Za-z0-9_]|\\_)*)\((.*)\)`)

// DetectFunctionCalls asks channel whether the conversation implies calls to
// any of tools. It returns nil when the reply says no call is needed.
func DetectFunctionCalls(ctx context.Context, channel Completer, template string, messages []Message, tools []string) ([]FunctionCall, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	prompt := BuildDetectionPrompt(template, messages, tools)
	reply, err := channel.Send(ctx, &Payload{
		Messages: []Message{UserMessage(prompt)},
	})
	if err != nil {
		return nil, err
	}
	if reply.Response == nil {
		return nil, fmt.Errorf("detection channel returned no response")
	}

	content := reply.Response.Content()
	if !IsFunctionCall(content) {
		return nil, nil
	}
	return ParseFunctionCalls(content), nil
}

// BuildDetectionPrompt fills the detection template with the flattened
// conversation, the tool catalog and a hint naming the first tool.
func BuildDetectionPrompt(template string, messages []Message, tools []string) string {
	if template == "" {
		template = DefaultDetectionTemplate
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}

	var mostUsed string
	if len(tools) > 0 {
		mostUsed, _, _ = strings.Cut(tools[0], "\n")
	}

	return strings.NewReplacer(
		"{tools}", strings.Join(tools, "\n\n"),
		"{most_commonly_used}", mostUsed,
		"{messages}", "Given messages:\n"+strings.Join(lines, "\n"),
	).Replace(template)
}

// IsFunctionCall reports whether a detector reply encodes a call. Replies
// starting with "null" (ignoring leading spaces, quotes and case) do not.
func IsFunctionCall(content string) bool {
	s := strings.TrimLeft(content, " \t\r\n\v\f")
	s = strings.TrimLeft(s, `"'`)
	return !strings.HasPrefix(strings.ToLower(s), "null")
}

// ParseFunctionCalls extracts one call per matching line, in order. Lines
// that do not look like a call are skipped.
func ParseFunctionCalls(text string) []FunctionCall {
	var calls []FunctionCall
	for _, line := range strings.Split(text, "\n") {
		m := callPattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		calls = append(calls, FunctionCall{
			Name: strings.ReplaceAll(m[1], `\_`, "_"),
			Args: m[2],
		})
	}
	return calls
}
