package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/aschepis/backscratcher/llmguard/retry"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for the Anthropic provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // Anthropic API key
	BaseURL string `yaml:"base_url,omitempty"` // Custom base URL (default: official API)
	Model   string `yaml:"model,omitempty"`    // Default model name
}

// OllamaConfig represents configuration for the Ollama provider.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`    // Ollama host (default: "http://localhost:11434")
	Model   string `yaml:"model,omitempty"`   // Default model name
	Timeout int    `yaml:"timeout,omitempty"` // Request timeout in seconds
}

// OpenAIConfig represents configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`      // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty"`     // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`        // Default model name
	Organization string `yaml:"organization,omitempty"` // Organization ID
}

// Config is the llmguard configuration file.
type Config struct {
	Provider        string   `yaml:"provider,omitempty"` // "anthropic", "ollama", or "openai"
	Temperature     *float64 `yaml:"temperature,omitempty"`
	MaxOutputTokens int      `yaml:"max_output_tokens,omitempty"`

	Retry retry.Policy `yaml:"retry,omitempty"`

	// ContextWindows adds or overrides model patterns in the selected
	// provider's built-in table.
	ContextWindows map[string]int `yaml:"context_windows,omitempty"`

	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		Provider: llm.ProviderOpenAI,
		Retry:    retry.DefaultPolicy(),
		Anthropic: AnthropicConfig{
			Model: "claude-3-5-sonnet-20241022",
		},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Model:   "llama3.2:3b",
			Timeout: 120,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via LLMGUARD_CONFIG environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("LLMGUARD_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.llmguard/config.yaml"
	}
	return filepath.Join(homeDir, ".llmguard", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load reads the config file at path and merges it onto the defaults.
// Returns defaults if the file doesn't exist. LLMGUARD_PROVIDER and
// LLMGUARD_MODEL override the file.
func Load(path string) (*Config, error) {
	defaults := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		configYAML, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var cfg Config
		if err := yaml.Unmarshal(configYAML, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		// Merge loaded config onto defaults
		if err := mergo.Merge(&defaults, cfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	defaults.applyEnv()
	return &defaults, nil
}

// Save writes the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv("LLMGUARD_PROVIDER"); p != "" {
		c.Provider = strings.ToLower(p)
	}
	if m := os.Getenv("LLMGUARD_MODEL"); m != "" {
		switch c.Provider {
		case llm.ProviderAnthropic:
			c.Anthropic.Model = m
		case llm.ProviderOllama:
			c.Ollama.Model = m
		default:
			c.OpenAI.Model = m
		}
	}
}

// ProviderConfig builds the validated llm.ProviderConfig for the selected
// provider.
func (c *Config) ProviderConfig() (llm.ProviderConfig, error) {
	if !llm.IsKnownProvider(c.Provider) {
		return llm.ProviderConfig{}, fmt.Errorf("unknown provider %q", c.Provider)
	}

	pc := llm.ProviderConfig{
		Name:            c.Provider,
		Temperature:     c.Temperature,
		MaxOutputTokens: c.MaxOutputTokens,
		Retry:           c.Retry,
	}

	switch c.Provider {
	case llm.ProviderOpenAI:
		pc.APIKey, pc.BaseURL, pc.Model, _ = LoadOpenAIConfig(c)
	case llm.ProviderAnthropic:
		pc.APIKey, pc.BaseURL, pc.Model = LoadAnthropicConfig(c)
	case llm.ProviderOllama:
		pc.BaseURL, pc.Model = LoadOllamaConfig(c)
	}

	if err := pc.Validate(); err != nil {
		return llm.ProviderConfig{}, err
	}
	return pc, nil
}

// WindowTable returns the selected provider's built-in table with the
// configured overrides placed first.
func (c *Config) WindowTable() llm.WindowTable {
	base := llm.WindowTableFor(c.Provider)
	if len(c.ContextWindows) == 0 {
		return base
	}

	overrides := lo.MapToSlice(c.ContextWindows, func(pattern string, capacity int) llm.WindowEntry {
		return llm.WindowEntry{Pattern: pattern, Capacity: capacity}
	})
	overrides = lo.Filter(overrides, func(e llm.WindowEntry, _ int) bool { return e.Pattern != "" && e.Capacity > 0 })
	// Map order is random; keep the table deterministic.
	slices.SortFunc(overrides, func(a, b llm.WindowEntry) int { return strings.Compare(a.Pattern, b.Pattern) })

	return llm.WindowTable{
		Entries: append(overrides, base.Entries...),
		Default: base.Default,
	}
}
