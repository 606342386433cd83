package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aschepis/backscratcher/llmguard/retry"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Prompt is either plain text or a list of messages. When Messages is set,
// Text is ignored.
type Prompt struct {
	Text     string
	Messages []Message
}

// TextPrompt creates a plain-text prompt.
func TextPrompt(text string) Prompt {
	return Prompt{Text: text}
}

// MessagesPrompt creates a structured prompt.
func MessagesPrompt(msgs ...Message) Prompt {
	return Prompt{Messages: msgs}
}

// IsStructured reports whether the prompt carries messages.
func (p Prompt) IsStructured() bool {
	return len(p.Messages) > 0
}

// BudgetText renders the prompt as text for token counting only. Structured
// prompts are JSON-encoded; the backend still receives the messages.
func (p Prompt) BudgetText() (string, error) {
	if !p.IsStructured() {
		return p.Text, nil
	}
	data, err := json.Marshal(p.Messages)
	if err != nil {
		return "", fmt.Errorf("failed to serialize prompt: %w", err)
	}
	return string(data), nil
}

// AsMessages returns the prompt as messages, wrapping plain text in a single
// user message.
func (p Prompt) AsMessages() []Message {
	if p.IsStructured() {
		return p.Messages
	}
	return []Message{{Role: RoleUser, Content: p.Text}}
}

// CallOverrides are optional per-call parameter overrides.
type CallOverrides struct {
	Temperature      *float64
	MaxOutputTokens  *int
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
	StopSequences    []string
}

// CompletionRequest is the input to a structured completion.
type CompletionRequest struct {
	Prompt    Prompt
	Overrides *CallOverrides
}

// OutputSchema describes the expected shape of a structured result. The
// schema document itself is opaque here and forwarded to the transport.
type OutputSchema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

var nonIdent = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// ExtractionName is the function/tool name under which the backend returns
// the structured result.
func (s OutputSchema) ExtractionName() string {
	if s.Name != "" {
		return s.Name
	}
	if slug := strings.Trim(nonIdent.ReplaceAllString(strings.ToLower(s.Description), "_"), "_"); slug != "" {
		if len(slug) > 48 {
			slug = strings.TrimRight(slug[:48], "_")
		}
		return "extract_" + slug
	}
	return "extract_data"
}

// ProviderConfig is the immutable configuration of one provider instance.
type ProviderConfig struct {
	Name            string
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     *float64
	MaxOutputTokens int
	Retry           retry.Policy
}

// Validate checks the fields every transport needs.
func (c ProviderConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must not be negative")
	}
	return nil
}

// BoundParams are hyperparameters attached to the model for a call.
type BoundParams struct {
	Temperature      *float64
	MaxOutputTokens  int
	TopP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

// RuntimeOptions are passed with each invocation rather than bound to the model.
type RuntimeOptions struct {
	Stop []string
}

// CallOptions is everything a transport needs for one invocation.
type CallOptions struct {
	Model   string
	Bound   BoundParams
	Runtime RuntimeOptions
	Schema  *OutputSchema
}

// Structured reports whether schema-constrained output was requested.
func (o CallOptions) Structured() bool {
	return o.Schema != nil
}

// BuildCallOptions derives the options for one call from the provider
// config and the caller's overrides. Neither input is modified.
func BuildCallOptions(cfg ProviderConfig, overrides *CallOverrides, schema *OutputSchema) CallOptions {
	opts := CallOptions{
		Model: cfg.Model,
		Bound: BoundParams{
			Temperature:     copyFloat(cfg.Temperature),
			MaxOutputTokens: EffectiveMaxOutputTokens(nil, cfg.MaxOutputTokens),
		},
	}
	if schema != nil {
		s := *schema
		opts.Schema = &s
	}
	if overrides == nil {
		return opts
	}

	if overrides.Temperature != nil {
		opts.Bound.Temperature = copyFloat(overrides.Temperature)
	}
	opts.Bound.MaxOutputTokens = EffectiveMaxOutputTokens(overrides.MaxOutputTokens, cfg.MaxOutputTokens)
	opts.Bound.TopP = copyFloat(overrides.TopP)
	opts.Bound.PresencePenalty = copyFloat(overrides.PresencePenalty)
	opts.Bound.FrequencyPenalty = copyFloat(overrides.FrequencyPenalty)

	if len(overrides.StopSequences) > 0 {
		opts.Runtime.Stop = append([]string(nil), overrides.StopSequences...)
	}
	return opts
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float returns a pointer to v, for building overrides.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for building overrides.
func Int(v int) *int {
	return &v
}

// Completion is what a transport returns for one invocation.
type Completion struct {
	Text string          // plain-text output
	Data json.RawMessage // structured output, set when a schema was requested
}
