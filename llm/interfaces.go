package llm

import (
	"context"
	"encoding/json"

	"github.com/aschepis/backscratcher/llmguard/retry"
)

// Transport is the narrow contract a backend adapter implements.
// Failures must be returned as *TransportErrorSignal (possibly wrapped) so
// the classifier never has to inspect provider-specific error values.
type Transport interface {
	// Invoke sends one completion request. When opts.Schema is set the
	// returned Completion carries Data, otherwise Text.
	Invoke(ctx context.Context, prompt Prompt, opts CallOptions) (*Completion, error)

	// ListModelIDs returns the model identifiers the backend exposes.
	// An empty listing must be reported as NO_MODELS_FOUND and a malformed
	// payload as INVALID_RESPONSE.
	ListModelIDs(ctx context.Context) ([]string, error)
}

// ModelDescriber is implemented by transports that can report a model's
// context window from the backend itself.
type ModelDescriber interface {
	ModelContextWindow(ctx context.Context, model string) (int, error)
}

// Completer is the capability surface callers depend on.
type Completer interface {
	// Name returns the provider name.
	Name() string

	// GetCompletion returns a plain-text completion.
	GetCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// GetStructuredCompletion returns a result constrained to schema.
	GetStructuredCompletion(ctx context.Context, req CompletionRequest, schema OutputSchema) (json.RawMessage, error)

	// ListModels returns the model identifiers available to the provider.
	ListModels(ctx context.Context) ([]string, error)

	// TokenContextWindow returns the context window of a known model and
	// fails with MODEL_NOT_FOUND otherwise.
	TokenContextWindow(model string) (int, error)

	// ContextWindowSize returns the configured model's context window,
	// asking the backend first and falling back to the default.
	ContextWindowSize(ctx context.Context) int

	// CountTokens counts tokens exactly when possible, approximately otherwise.
	CountTokens(ctx context.Context, text string) int
}

// Observer receives events for metrics. Implementations must be safe for
// concurrent use.
type Observer interface {
	RetryScheduled(provider string, ev retry.Event)
	CallFailed(provider string, err *ProviderError)
	BudgetRejected(provider string, b Budget)
	CallSucceeded(provider string, structured bool)
}

// nopObserver discards all events.
type nopObserver struct{}

func (nopObserver) RetryScheduled(string, retry.Event) {}
func (nopObserver) CallFailed(string, *ProviderError)  {}
func (nopObserver) BudgetRejected(string, Budget)      {}
func (nopObserver) CallSucceeded(string, bool)         {}

var _ Observer = nopObserver{}
