package config

import (
	"os"

	llmanthropic "github.com/aschepis/backscratcher/llmguard/llm/anthropic"
	"github.com/rs/zerolog"
)

// LoadAnthropicConfig loads Anthropic configuration.
// It returns the API key, base URL, and model to use for creating an Anthropic client.
func LoadAnthropicConfig(cfg *Config) (apiKey, baseURL, model string) {
	if cfg != nil {
		apiKey = cfg.Anthropic.APIKey
		baseURL = cfg.Anthropic.BaseURL
		model = cfg.Anthropic.Model
	}
	if envAPIKey := os.Getenv("ANTHROPIC_API_KEY"); envAPIKey != "" {
		apiKey = envAPIKey
	}
	return apiKey, baseURL, model
}

// NewAnthropicClient creates a new Anthropic transport from the configuration.
func NewAnthropicClient(cfg *Config, logger zerolog.Logger) (*llmanthropic.Client, error) {
	apiKey, baseURL, model := LoadAnthropicConfig(cfg)
	return llmanthropic.NewClient(apiKey, baseURL, model, logger)
}
