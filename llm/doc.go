// Package llm is a resilience layer between callers and LLM backends.
//
// A Provider wraps a backend Transport and adds the behavior every backend
// call needs, independent of which SDK sits underneath.
//
// # Core Concepts
//
//  1. Context windows: WindowResolver maps a model name to its context
//     capacity through a WindowTable. Permissive resolution falls back to the
//     table default; strict resolution fails with MODEL_NOT_FOUND.
//
//  2. Token budgets: ValidateBudget counts the prompt (exactly through a
//     TokenCounter, otherwise at four characters per token) and rejects it
//     before any network call when it does not fit next to the reserved
//     output tokens.
//
//  3. Errors: transports report failures as TransportErrorSignal. Classify
//     maps a signal to one ErrorKind, and ProviderError is the only error a
//     Provider returns. Only RATE_LIMIT_ERROR and API_ERROR are retryable.
//
//  4. Retries: failed invocations are retried by the retry package with
//     bounded exponential backoff.
//
//  5. Structured output: GetStructuredCompletion constrains the result to an
//     OutputSchema. StructuredCompletion decodes it into a Go type.
//
// Usage Example
//
//	transport, _ := openai.NewClient(apiKey, "", "", logger)
//	provider, err := llm.NewProvider(llm.ProviderConfig{
//	    Name:  llm.ProviderOpenAI,
//	    Model: "gpt-4o",
//	    Retry: retry.DefaultPolicy(),
//	}, transport, llm.WithLogger(logger))
//
//	type Person struct {
//	    Name string `json:"name"`
//	}
//	p, err := llm.StructuredCompletion[Person](ctx, provider,
//	    llm.CompletionRequest{Prompt: llm.TextPrompt("Ada Lovelace wrote the first program")},
//	    llm.OutputSchema{Description: "Person", Schema: schema},
//	)
//
// # Extension Points
//
// To add a backend:
//  1. Implement the Transport interface
//  2. Return failures as *TransportErrorSignal with status, code and type filled in
//  3. Optionally implement TokenCounter and ModelDescriber
//  4. Add a WindowTable for its models
package llm
