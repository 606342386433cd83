package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/rs/zerolog"
)

// Client implements llm.Transport and llm.TokenCounter for Anthropic's API.
type Client struct {
	client *anthropic.Client
	model  string // model used for token counting
	logger zerolog.Logger
}

// Option configures a Client.
type Option func(*[]option.RequestOption)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithHTTPClient(hc)) }
}

// NewClient creates a new Client with the given API key. SDK retries are
// disabled; callers retry through llm.Provider.
func NewClient(apiKey, baseURL, model string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	for _, opt := range opts {
		opt(&reqOpts)
	}

	client := anthropic.NewClient(reqOpts...)
	return &Client{
		client: &client,
		model:  model,
		logger: logger.With().Str("component", "anthropic").Logger(),
	}, nil
}

// Invoke implements llm.Transport.Invoke.
func (c *Client) Invoke(ctx context.Context, prompt llm.Prompt, opts llm.CallOptions) (*llm.Completion, error) {
	params := ToMessageNewParams(prompt, opts)
	if opts.Bound.PresencePenalty != nil || opts.Bound.FrequencyPenalty != nil {
		c.logger.Debug().Msg("Penalty parameters are not supported and will be ignored")
	}
	c.logger.Debug().
		Str("model", opts.Model).
		Int("messages", len(params.Messages)).
		Bool("structured", opts.Structured()).
		Msg("Sending messages request")

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, toSignal(err)
	}

	var text string
	for _, blockUnion := range message.Content {
		switch block := blockUnion.AsAny().(type) {
		case anthropic.TextBlock:
			text += block.Text
		case anthropic.ToolUseBlock:
			if !opts.Structured() || block.Name != opts.Schema.ExtractionName() {
				continue
			}
			data, err := json.Marshal(block.Input)
			if err != nil {
				return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderAnthropic, "failed to read tool input", err)
			}
			return &llm.Completion{Data: data}, nil
		}
	}

	if opts.Structured() {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderAnthropic,
			fmt.Sprintf("response did not call %s", opts.Schema.ExtractionName()), nil)
	}
	return &llm.Completion{Text: text}, nil
}

// CountTokens implements llm.TokenCounter using the count-tokens endpoint.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	if c.model == "" {
		return 0, fmt.Errorf("model is required for token counting")
	}
	count, err := c.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(c.model),
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(text))},
	})
	if err != nil {
		return 0, toSignal(err)
	}
	return int(count.InputTokens), nil
}

// ListModelIDs implements llm.Transport.ListModelIDs.
func (c *Client) ListModelIDs(ctx context.Context) ([]string, error) {
	var ids []string
	iter := c.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, toSignal(err)
	}
	if len(ids) == 0 {
		return nil, llm.NewProviderError(llm.ErrorKindNoModelsFound, llm.ProviderAnthropic, "no models found in API response", nil)
	}
	c.logger.Debug().Int("count", len(ids)).Msg("Listed models")
	return ids, nil
}

var _ llm.Transport = (*Client)(nil)
var _ llm.TokenCounter = (*Client)(nil)
