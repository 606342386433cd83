package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aschepis/backscratcher/llmguard/retry"
	"github.com/rs/zerolog"
)

// Provider composes a Transport with window resolution, budget validation,
// failure classification and retries. It holds no mutable state, so one
// Provider can serve concurrent calls.
type Provider struct {
	cfg                ProviderConfig
	transport          Transport
	counter            TokenCounter
	windows            *WindowResolver
	defaultContextSize int
	observer           Observer
	logger             zerolog.Logger
	retryOpts          []retry.Option
}

// ProviderOption configures optional Provider behavior.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	logger    zerolog.Logger
	observer  Observer
	table     *WindowTable
	counter   TokenCounter
	retryOpts []retry.Option
}

// WithLogger sets the provider's logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) ProviderOption {
	return func(o *providerOptions) { o.logger = l }
}

// WithObserver registers a metrics observer.
func WithObserver(obs Observer) ProviderOption {
	return func(o *providerOptions) { o.observer = obs }
}

// WithWindowTable replaces the built-in context window table.
func WithWindowTable(t WindowTable) ProviderOption {
	return func(o *providerOptions) { o.table = &t }
}

// WithTokenCounter sets the exact token counter. By default the transport
// is used when it implements TokenCounter.
func WithTokenCounter(c TokenCounter) ProviderOption {
	return func(o *providerOptions) { o.counter = c }
}

// WithRetryOptions passes extra options to every retry loop.
func WithRetryOptions(opts ...retry.Option) ProviderOption {
	return func(o *providerOptions) { o.retryOpts = append(o.retryOpts, opts...) }
}

// NewProvider creates a Provider. The config is copied and never modified.
func NewProvider(cfg ProviderConfig, transport Transport, opts ...ProviderOption) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}

	o := providerOptions{logger: zerolog.Nop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	if o.counter == nil {
		if c, ok := transport.(TokenCounter); ok {
			o.counter = c
		}
	}
	table := WindowTableFor(cfg.Name)
	if o.table != nil {
		table = *o.table
	}

	cfg.Temperature = copyFloat(cfg.Temperature)
	logger := o.logger.With().Str("component", "provider").Str("provider", cfg.Name).Logger()

	p := &Provider{
		cfg:       cfg,
		transport: transport,
		counter:   o.counter,
		windows:   NewWindowResolver(cfg.Name, table, logger),
		observer:  o.observer,
		logger:    logger,
		retryOpts: o.retryOpts,
	}

	w, _ := p.windows.Resolve(cfg.Model, ResolvePermissive)
	p.defaultContextSize = w.Size
	if w.Fallback {
		logger.Warn().
			Str("model", cfg.Model).
			Int("context_size", w.Size).
			Msg("Using fallback context size for unknown model")
	}

	return p, nil
}

// Name implements Completer.Name.
func (p *Provider) Name() string {
	return p.cfg.Name
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.cfg.Model
}

// DefaultContextSize is the configured model's window as resolved at
// construction time.
func (p *Provider) DefaultContextSize() int {
	return p.defaultContextSize
}

// TokenContextWindow implements Completer.TokenContextWindow.
func (p *Provider) TokenContextWindow(model string) (int, error) {
	p.logger.Debug().Str("model", model).Msg("Getting token context window")
	w, err := p.windows.Resolve(model, ResolveStrict)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to get token context window")
		return 0, err
	}
	return w.Size, nil
}

// ContextWindowSize implements Completer.ContextWindowSize.
func (p *Provider) ContextWindowSize(ctx context.Context) int {
	describer, ok := p.transport.(ModelDescriber)
	if !ok {
		return p.defaultContextSize
	}
	size, err := describer.ModelContextWindow(ctx, p.cfg.Model)
	if err != nil || size <= 0 {
		p.logger.Warn().
			Err(err).
			Str("model", p.cfg.Model).
			Int("default", p.defaultContextSize).
			Msg("Failed to get context window size, using default")
		return p.defaultContextSize
	}
	return size
}

// CountTokens implements Completer.CountTokens.
func (p *Provider) CountTokens(ctx context.Context, text string) int {
	n, _ := countTokens(ctx, p.counter, text, p.logger)
	return n
}

// ListModels implements Completer.ListModels.
func (p *Provider) ListModels(ctx context.Context) ([]string, error) {
	p.logger.Debug().Msg("Fetching available models")
	ids, err := p.transport.ListModelIDs(ctx)
	if err != nil {
		perr := ClassifyError(p.cfg.Name, err)
		p.logger.Error().Err(perr).Msg("Failed to fetch models")
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}
	if len(ids) == 0 {
		perr := NewProviderError(ErrorKindNoModelsFound, p.cfg.Name, "no models found in API response", nil)
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}
	p.logger.Debug().Int("count", len(ids)).Msg("Fetched models")
	return ids, nil
}

// GetCompletion implements Completer.GetCompletion.
func (p *Provider) GetCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var msgs []Message
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: userPrompt})

	// Budget the raw text; the message envelope never reaches the model as text.
	budgetText := userPrompt
	if systemPrompt != "" {
		budgetText = systemPrompt + "\n" + userPrompt
	}

	c, err := p.complete(ctx, MessagesPrompt(msgs...), budgetText, nil, nil)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// GetStructuredCompletion implements Completer.GetStructuredCompletion.
func (p *Provider) GetStructuredCompletion(ctx context.Context, req CompletionRequest, schema OutputSchema) (json.RawMessage, error) {
	p.logger.Debug().
		Str("model", p.cfg.Model).
		Bool("structured_prompt", req.Prompt.IsStructured()).
		Str("extraction", schema.ExtractionName()).
		Msg("Getting structured completion")

	text, err := req.Prompt.BudgetText()
	if err != nil {
		perr := NewProviderError(ErrorKindValidation, p.cfg.Name, "prompt could not be serialized", err)
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}

	c, err := p.complete(ctx, req.Prompt, text, req.Overrides, &schema)
	if err != nil {
		return nil, err
	}
	if len(c.Data) == 0 || !json.Valid(c.Data) {
		perr := NewProviderError(ErrorKindInvalidResponse, p.cfg.Name, "structured response is not valid JSON", nil)
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}
	return c.Data, nil
}

// complete runs the budget check on budgetText and the retried invocation
// shared by the plain and structured paths.
func (p *Provider) complete(ctx context.Context, prompt Prompt, budgetText string, overrides *CallOverrides, schema *OutputSchema) (*Completion, error) {
	var maxOverride *int
	if overrides != nil {
		maxOverride = overrides.MaxOutputTokens
	}
	maxOutput := EffectiveMaxOutputTokens(maxOverride, p.cfg.MaxOutputTokens)

	window, _ := p.windows.Resolve(p.cfg.Model, ResolvePermissive)
	budget, err := ValidateBudget(ctx, p.cfg.Name, p.counter, budgetText, maxOutput, window.Size, p.logger)
	if err != nil {
		p.observer.BudgetRejected(p.cfg.Name, budget)
		perr := ClassifyError(p.cfg.Name, err)
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}

	opts := BuildCallOptions(p.cfg, overrides, schema)
	if overrides != nil {
		p.logger.Debug().
			Interface("bound", opts.Bound).
			Strs("stop", opts.Runtime.Stop).
			Msg("Bound per-call options")
	}

	classify := func(err error) retry.Decision {
		perr := ClassifyError(p.cfg.Name, err)
		return retry.Decision{Err: perr, Label: perr.Kind.String(), Retryable: perr.Kind.Retryable()}
	}
	notify := func(ev retry.Event) {
		p.observer.RetryScheduled(p.cfg.Name, ev)
	}
	retryOpts := append([]retry.Option{
		retry.WithClassifier(classify),
		retry.WithNotify(notify),
		retry.WithLogger(p.logger),
	}, p.retryOpts...)

	c, err := retry.Do(ctx, p.cfg.Retry, func(ctx context.Context) (*Completion, error) {
		c, err := p.transport.Invoke(ctx, prompt, opts)
		if err != nil {
			p.logger.Warn().Err(err).Str("model", opts.Model).Msg("API call attempt failed")
			return nil, err
		}
		if c == nil {
			return nil, NewProviderError(ErrorKindInvalidResponse, p.cfg.Name, "empty response from backend", nil)
		}
		return c, nil
	}, retryOpts...)
	if err != nil {
		perr := ClassifyError(p.cfg.Name, err)
		p.logger.Error().Err(perr).Str("model", p.cfg.Model).Msg("Completion failed")
		p.observer.CallFailed(p.cfg.Name, perr)
		return nil, perr
	}

	p.observer.CallSucceeded(p.cfg.Name, schema != nil)
	return c, nil
}

// StructuredCompletion runs a structured completion and decodes the result
// into T. A result that does not decode fails with INVALID_RESPONSE.
func StructuredCompletion[T any](ctx context.Context, c Completer, req CompletionRequest, schema OutputSchema) (T, error) {
	var out T
	data, err := c.GetStructuredCompletion(ctx, req, schema)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, NewProviderError(ErrorKindInvalidResponse, c.Name(), "structured response does not match the expected shape", err)
	}
	return out, nil
}

var _ Completer = (*Provider)(nil)
