package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ramptix/leicht/pkg/llm"

	"gopkg.in/yaml.v3"
)

// Providers accepted in the provider field.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

// Config represents the complete leicht configuration
type Config struct {
	Provider  string          `yaml:"provider"`
	Model     string          `yaml:"model"`
	APIKey    string          `yaml:"api_key"`
	BaseURL   string          `yaml:"base_url"`
	Timeout   Duration        `yaml:"timeout"`
	System    string          `yaml:"system"` // System prompt or prompt reference
	Sampling  SamplingConfig  `yaml:"sampling"`
	Detection DetectionConfig `yaml:"detection"`
	Prompts   PromptsConfig   `yaml:"prompts"`
	Session   SessionConfig   `yaml:"session"`
	Tools     ToolsConfig     `yaml:"tools"`
	MCP       MCPConfig       `yaml:"mcp"`
	Hooks     HooksConfig     `yaml:"hooks"`
}

// SamplingConfig holds the default request parameters. Unset fields are left
// to the provider.
type SamplingConfig struct {
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	TopP        *float64 `yaml:"top_p"`
	Stop        []string `yaml:"stop"`
	Seed        *int     `yaml:"seed"`
}

// Params converts the sampling section to request parameters.
func (s SamplingConfig) Params() llm.Params {
	return llm.Params{
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		TopP:        s.TopP,
		Stop:        s.Stop,
		Seed:        s.Seed,
	}
}

// IsZero reports whether no sampling field is set.
func (s SamplingConfig) IsZero() bool {
	return s.Temperature == nil && s.MaxTokens == nil && s.TopP == nil && s.Stop == nil && s.Seed == nil
}

func (s SamplingConfig) validate(section string) error {
	if t := s.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("%s.temperature must be between 0 and 2, got %g", section, *t)
	}
	if p := s.TopP; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("%s.top_p must be between 0 and 1, got %g", section, *p)
	}
	if n := s.MaxTokens; n != nil && *n <= 0 {
		return fmt.Errorf("%s.max_tokens must be positive, got %d", section, *n)
	}
	return nil
}

// DetectionConfig points tool-call detection at its own model. Empty
// provider fields fall back to the main ones; a different provider starts
// from that provider's defaults and credentials. Sampling replaces the
// built-in detection sampling when set.
type DetectionConfig struct {
	Provider string         `yaml:"provider"`
	Model    string         `yaml:"model"`
	APIKey   string         `yaml:"api_key"`
	BaseURL  string         `yaml:"base_url"`
	Sampling SamplingConfig `yaml:"sampling"`
}

// Params returns the detection sampling parameters.
func (d DetectionConfig) Params() llm.Params {
	if d.Sampling.IsZero() {
		return llm.DefaultDetectionParams()
	}
	return d.Sampling.Params()
}

// PromptsConfig configures the prompt template cache
type PromptsConfig struct {
	Dir     string            `yaml:"dir"`
	BaseURL string            `yaml:"base_url"`
	NoCache bool              `yaml:"no_cache"`
	Fill    map[string]string `yaml:"fill"`
}

// SessionConfig configures conversation persistence
type SessionConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// ToolsConfig selects the builtin tools
type ToolsConfig struct {
	// Builtin disables every builtin tool when set to false.
	Builtin *bool `yaml:"builtin"`
	// Shell registers the bash tool.
	Shell bool `yaml:"shell"`
}

// HooksConfig contains hook-related settings
type HooksConfig struct {
	// ShellConfirm asks before every bash command
	ShellConfirm bool `yaml:"shell_confirm"`
	// ToolConfirm asks before the listed tools
	ToolConfirm []string `yaml:"tool_confirm"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier, prefixes its tool names
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   string            `yaml:"command"`   // Executable to run (stdio)
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	URL       string            `yaml:"url"`       // Endpoint (http)
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

// Duration is a time.Duration written as "30s" or "2m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load reads and parses the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.APIKey = ExpandEnv(cfg.APIKey)
	cfg.Detection.APIKey = ExpandEnv(cfg.Detection.APIKey)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Locations lists the files LoadWithDefaults looks at, in order.
func Locations() []string {
	locations := []string{
		"./leicht.yaml",
		"./configs/leicht.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "leicht", "leicht.yaml"))
	}

	return append(locations, "/etc/leicht/leicht.yaml")
}

// LoadWithDefaults loads the first config found in Locations. Having no config
// file is not an error.
func LoadWithDefaults() (*Config, error) {
	for _, loc := range Locations() {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	cfg := &Config{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.System == "" {
		c.System = "You are a helpful assistant."
	}
}

// BuiltinTools reports whether the builtin tools should be registered.
func (c *Config) BuiltinTools() bool {
	return c.Tools.Builtin == nil || *c.Tools.Builtin
}

// Credential returns the configured API key, falling back to the provider's
// environment variable.
func (c *Config) Credential() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv(CredentialEnv(c.Provider))
}

// DetectionBackend returns the provider settings for the detection channel,
// or false when detection uses the main provider.
func (c *Config) DetectionBackend() (*Config, bool) {
	d := c.Detection
	if d.Provider == "" && d.Model == "" && d.APIKey == "" && d.BaseURL == "" {
		return nil, false
	}

	out := &Config{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  c.Timeout,
	}
	if d.Provider != "" && d.Provider != c.Provider {
		out.Provider = d.Provider
		out.Model, out.APIKey, out.BaseURL = "", "", ""
	}
	if d.Model != "" {
		out.Model = d.Model
	}
	if d.APIKey != "" {
		out.APIKey = d.APIKey
	}
	if d.BaseURL != "" {
		out.BaseURL = d.BaseURL
	}
	return out, true
}

// CredentialEnv names the environment variable holding the provider's key.
func CredentialEnv(provider string) string {
	switch provider {
	case ProviderGroq:
		return "GROQ_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// Validate checks config correctness
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderGroq, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported provider: %s (expected openai, groq or anthropic)", c.Provider)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if err := c.Sampling.validate("sampling"); err != nil {
		return err
	}
	switch c.Detection.Provider {
	case "", ProviderOpenAI, ProviderGroq, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported detection provider: %s", c.Detection.Provider)
	}
	if err := c.Detection.Sampling.validate("detection.sampling"); err != nil {
		return err
	}

	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Server names prefix tool names, which must stay identifiers.
	for i, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (i > 0 && ch >= '0' && ch <= '9') || ch == '_') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only letters, digits and underscore allowed)", s.Name, ch)
		}
	}

	switch s.Transport {
	case "":
		return fmt.Errorf("transport is required")
	case "stdio":
		if s.Command == "" {
			return fmt.Errorf("command is required")
		}
	case "http":
		if s.URL == "" {
			return fmt.Errorf("url is required")
		}
	default:
		return fmt.Errorf("unsupported transport: %s (expected 'stdio' or 'http')", s.Transport)
	}

	return nil
}
