package config

import (
	"net/http"
	"os"
	"time"

	llmollama "github.com/aschepis/backscratcher/llmguard/llm/ollama"
	"github.com/rs/zerolog"
)

// LoadOllamaConfig loads Ollama configuration.
// It returns the host and model to use for creating an Ollama client.
func LoadOllamaConfig(cfg *Config) (host, model string) {
	if cfg == nil {
		// Return defaults
		host = getOllamaHostFromEnv()
		return
	}

	host = cfg.Ollama.Host
	model = cfg.Ollama.Model

	// Apply environment variable overrides
	if envHost := getOllamaHostFromEnv(); envHost != "" {
		host = envHost
	}

	// Set defaults if still empty
	if host == "" {
		host = "http://localhost:11434"
	}

	return host, model
}

// NewOllamaClient creates a new Ollama transport from the configuration.
func NewOllamaClient(cfg *Config, logger zerolog.Logger) (*llmollama.Client, error) {
	host, _ := LoadOllamaConfig(cfg)
	httpClient := &http.Client{}
	if cfg != nil && cfg.Ollama.Timeout > 0 {
		httpClient.Timeout = time.Duration(cfg.Ollama.Timeout) * time.Second
	}
	return llmollama.NewClient(host, httpClient, logger)
}

// getOllamaHostFromEnv gets the Ollama host from environment variable.
func getOllamaHostFromEnv() string {
	return os.Getenv("OLLAMA_HOST")
}
