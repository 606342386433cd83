package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// DefaultOutputReserve is the output budget used when neither the call nor the
// provider configures one.
const DefaultOutputReserve = 2048

// charsPerToken is the ratio behind ApproximateTokens.
const charsPerToken = 4

// TokenCounter is implemented by transports that expose an exact tokenizer.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// ApproximateTokens estimates a token count as ceil(characters / 4).
func ApproximateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// EffectiveMaxOutputTokens picks the per-call override, then the provider
// default, then DefaultOutputReserve.
func EffectiveMaxOutputTokens(override *int, providerDefault int) int {
	if override != nil && *override > 0 {
		return *override
	}
	if providerDefault > 0 {
		return providerDefault
	}
	return DefaultOutputReserve
}

// Budget describes a token budget check.
type Budget struct {
	InputTokens   int
	Available     int
	ContextWindow int
	OutputReserve int
	Approximate   bool // InputTokens came from ApproximateTokens
}

// countTokens counts with the exact counter when there is one and falls
// back to the approximation otherwise.
func countTokens(ctx context.Context, counter TokenCounter, text string, logger zerolog.Logger) (int, bool) {
	if counter == nil {
		logger.Debug().Msg("No tokenizer available, approximating token count")
		return ApproximateTokens(text), true
	}
	n, err := counter.CountTokens(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("Token counting failed, falling back to approximation")
		return ApproximateTokens(text), true
	}
	return n, false
}

// ValidateBudget checks that prompt fits into contextWindow once maxOutput
// tokens are reserved for the reply. It fails with VALIDATION_ERROR only when
// the counted input strictly exceeds the available budget.
func ValidateBudget(
	ctx context.Context,
	provider string,
	counter TokenCounter,
	prompt string,
	maxOutput int,
	contextWindow int,
	logger zerolog.Logger,
) (Budget, error) {
	inputTokens, approximate := countTokens(ctx, counter, prompt, logger)
	b := Budget{
		InputTokens:   inputTokens,
		Available:     contextWindow - maxOutput,
		ContextWindow: contextWindow,
		OutputReserve: maxOutput,
		Approximate:   approximate,
	}

	logger.Debug().
		Int("input_tokens", b.InputTokens).
		Int("available", b.Available).
		Int("context_window", b.ContextWindow).
		Int("output_reserve", b.OutputReserve).
		Bool("approximate", b.Approximate).
		Msg("Token budget")

	if b.InputTokens > b.Available {
		msg := fmt.Sprintf(
			"input prompt (%d tokens) exceeds the available input token limit (%d tokens); context window %d, reserved for output %d",
			b.InputTokens, b.Available, b.ContextWindow, b.OutputReserve,
		)
		logger.Warn().Int("input_tokens", b.InputTokens).Int("available", b.Available).Msg("Prompt exceeds token budget")
		return b, NewProviderError(ErrorKindValidation, provider, msg, nil)
	}
	return b, nil
}
