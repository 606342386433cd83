package config

import (
	"fmt"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/rs/zerolog"
)

// NewTransport creates the transport for the configured provider.
func NewTransport(cfg *Config, logger zerolog.Logger) (llm.Transport, error) {
	switch cfg.Provider {
	case llm.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case llm.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	case llm.ProviderOllama:
		return NewOllamaClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// NewProvider builds the configured provider. Options are applied after the
// logger and the configured window table, so callers can override either.
func NewProvider(cfg *Config, logger zerolog.Logger, opts ...llm.ProviderOption) (*llm.Provider, error) {
	pc, err := cfg.ProviderConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", cfg.Provider, err)
	}

	transport, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	base := []llm.ProviderOption{
		llm.WithLogger(logger),
		llm.WithWindowTable(cfg.WindowTable()),
	}
	return llm.NewProvider(pc, transport, append(base, opts...)...)
}
