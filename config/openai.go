package config

import (
	"os"

	llmopenai "github.com/aschepis/backscratcher/llmguard/llm/openai"
	"github.com/rs/zerolog"
)

// LoadOpenAIConfig loads OpenAI configuration.
// It returns the API key, base URL, model, and organization to use for creating an OpenAI client.
func LoadOpenAIConfig(cfg *Config) (apiKey, baseURL, model, organization string) {
	if cfg == nil {
		// Return defaults from environment
		apiKey = getOpenAIAPIKeyFromEnv()
		baseURL = getOpenAIBaseURLFromEnv()
		organization = getOpenAIOrgFromEnv()
		return
	}

	apiKey = cfg.OpenAI.APIKey
	baseURL = cfg.OpenAI.BaseURL
	model = cfg.OpenAI.Model
	organization = cfg.OpenAI.Organization

	// Apply environment variable overrides
	if envAPIKey := getOpenAIAPIKeyFromEnv(); envAPIKey != "" {
		apiKey = envAPIKey
	}
	if envBaseURL := getOpenAIBaseURLFromEnv(); envBaseURL != "" {
		baseURL = envBaseURL
	}
	if envOrg := getOpenAIOrgFromEnv(); envOrg != "" {
		organization = envOrg
	}

	return apiKey, baseURL, model, organization
}

// NewOpenAIClient creates a new OpenAI transport from the configuration.
func NewOpenAIClient(cfg *Config, logger zerolog.Logger) (*llmopenai.Client, error) {
	apiKey, baseURL, _, organization := LoadOpenAIConfig(cfg)
	return llmopenai.NewClient(apiKey, baseURL, organization, logger)
}

// getOpenAIAPIKeyFromEnv gets the OpenAI API key from environment variable.
func getOpenAIAPIKeyFromEnv() string {
	return os.Getenv("OPENAI_API_KEY")
}

// getOpenAIBaseURLFromEnv gets the OpenAI base URL from environment variable.
func getOpenAIBaseURLFromEnv() string {
	return os.Getenv("OPENAI_BASE_URL")
}

// getOpenAIOrgFromEnv gets the OpenAI organization ID from environment variable.
func getOpenAIOrgFromEnv() string {
	return os.Getenv("OPENAI_ORG_ID")
}
