package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leicht.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("LEICHT_TEST_KEY", "gsk-123")

	cfg, err := Load(writeConfig(t, `
provider: groq
model: llama-3.1-8b-instant
api_key: ${LEICHT_TEST_KEY}
timeout: 45s
system: ramptix/assistant
sampling:
  temperature: 0.2
  max_tokens: 256
  stop: ["\n\n"]
prompts:
  dir: /tmp/prompts
  fill:
    name: Leicht
session:
  path: /tmp/leicht.db
tools:
  builtin: false
  shell: true
hooks:
  shell_confirm: true
  tool_confirm: [read_file]
mcp:
  servers:
    - name: files
      transport: stdio
      command: mcp-files
      args: ["--root", "."]
      env:
        TOKEN: ${LEICHT_TEST_KEY}
    - name: search
      transport: http
      url: http://localhost:8080/mcp
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderGroq, cfg.Provider)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Model)
	assert.Equal(t, "gsk-123", cfg.APIKey)
	assert.Equal(t, "gsk-123", cfg.Credential())
	assert.Equal(t, 45*time.Second, time.Duration(cfg.Timeout))
	assert.Equal(t, "ramptix/assistant", cfg.System)
	assert.Equal(t, "Leicht", cfg.Prompts.Fill["name"])
	assert.False(t, cfg.BuiltinTools())
	assert.True(t, cfg.Tools.Shell)
	assert.Equal(t, []string{"read_file"}, cfg.Hooks.ToolConfirm)

	params := cfg.Sampling.Params()
	require.NotNil(t, params.Temperature)
	assert.Equal(t, 0.2, *params.Temperature)
	assert.Equal(t, 256, *params.MaxTokens)
	assert.Equal(t, []string{"\n\n"}, params.Stop)
	assert.Nil(t, params.TopP)

	require.Len(t, cfg.MCP.Servers, 2)
	assert.Equal(t, "${LEICHT_TEST_KEY}", cfg.MCP.Servers[0].Env["TOKEN"])
	assert.Equal(t, "http://localhost:8080/mcp", cfg.MCP.Servers[1].URL)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "model: gpt-4o\n"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "You are a helpful assistant.", cfg.System)
	assert.True(t, cfg.BuiltinTools())
	assert.Zero(t, cfg.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "provider: [", "failed to parse config YAML"},
		{"bad duration", "timeout: soon", "invalid duration"},
		{"provider", "provider: ollama", "unsupported provider"},
		{"temperature", "sampling:\n  temperature: 3", "sampling.temperature"},
		{"top_p", "sampling:\n  top_p: 1.5", "sampling.top_p"},
		{"max tokens", "sampling:\n  max_tokens: 0", "sampling.max_tokens"},
		{"detection provider", "detection:\n  provider: ollama", "unsupported detection provider"},
		{"detection sampling", "detection:\n  sampling:\n    top_p: 2", "detection.sampling.top_p"},
		{"server name", "mcp:\n  servers:\n    - transport: stdio\n      command: x", "name cannot be empty"},
		{"duplicate server", "mcp:\n  servers:\n    - {name: a, transport: stdio, command: x}\n    - {name: a, transport: stdio, command: y}", "duplicate server name"},
		{"server chars", "mcp:\n  servers:\n    - {name: my-server, transport: stdio, command: x}", "invalid character '-'"},
		{"transport", "mcp:\n  servers:\n    - {name: a, transport: sse}", "unsupported transport"},
		{"command", "mcp:\n  servers:\n    - {name: a, transport: stdio}", "command is required"},
		{"url", "mcp:\n  servers:\n    - {name: a, transport: http}", "url is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWithDefaults_CurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leicht.yaml"), []byte("provider: anthropic\n"), 0o644))
	t.Chdir(dir)

	cfg, err := LoadWithDefaults()
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
}

func TestCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	cfg := &Config{Provider: ProviderOpenAI}
	assert.Equal(t, "sk-env", cfg.Credential())

	cfg = &Config{Provider: ProviderAnthropic}
	assert.Equal(t, "sk-ant-env", cfg.Credential())

	cfg = &Config{Provider: ProviderAnthropic, APIKey: "explicit"}
	assert.Equal(t, "explicit", cfg.Credential())

	assert.Equal(t, "GROQ_API_KEY", CredentialEnv(ProviderGroq))
}

func TestLoad_Detection(t *testing.T) {
	t.Setenv("LEICHT_DETECT_KEY", "sk-ant-detect")

	cfg, err := Load(writeConfig(t, `
provider: openai
model: gpt-4o
api_key: sk-main
detection:
  provider: anthropic
  api_key: ${LEICHT_DETECT_KEY}
  sampling:
    temperature: 0
`))
	require.NoError(t, err)

	dc, ok := cfg.DetectionBackend()
	require.True(t, ok)
	assert.Equal(t, ProviderAnthropic, dc.Provider)
	assert.Empty(t, dc.Model)
	assert.Equal(t, "sk-ant-detect", dc.APIKey)

	p := cfg.Detection.Params()
	assert.Equal(t, 0.0, *p.Temperature)
	assert.Nil(t, p.TopP)
}

func TestDetectionBackend(t *testing.T) {
	cfg := &Config{Provider: ProviderOpenAI, Model: "gpt-4o", APIKey: "sk-main", Timeout: Duration(time.Minute)}
	_, ok := cfg.DetectionBackend()
	assert.False(t, ok)
	assert.Equal(t, 0.9, *cfg.Detection.Params().Temperature)

	cfg.Detection.Model = "gpt-4o-mini"
	dc, ok := cfg.DetectionBackend()
	require.True(t, ok)
	assert.Equal(t, ProviderOpenAI, dc.Provider)
	assert.Equal(t, "gpt-4o-mini", dc.Model)
	assert.Equal(t, "sk-main", dc.APIKey)
	assert.Equal(t, Duration(time.Minute), dc.Timeout)
}
