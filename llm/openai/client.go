package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultBaseURL is the public OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client implements llm.Transport for OpenAI-compatible chat APIs.
type Client struct {
	client     *openai.Client
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new Client.
// If apiKey is empty, it will return an error.
// If baseURL is empty, it will use the default OpenAI API endpoint.
func NewClient(apiKey, baseURL, organization string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		httpClient: http.DefaultClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With().Str("component", "openai").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = c.baseURL
	config.HTTPClient = c.httpClient
	if organization != "" {
		config.OrgID = organization
	}
	c.client = openai.NewClientWithConfig(config)

	return c, nil
}

// Invoke implements llm.Transport.Invoke.
func (c *Client) Invoke(ctx context.Context, prompt llm.Prompt, opts llm.CallOptions) (*llm.Completion, error) {
	req := ToChatRequest(prompt, opts)
	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("structured", opts.Structured()).
		Msg("Sending chat completion request")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, toSignal(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOpenAI, "no choices in response", nil)
	}

	content := resp.Choices[0].Message.Content
	if !opts.Structured() {
		return &llm.Completion{Text: content}, nil
	}

	data := json.RawMessage(strings.TrimSpace(content))
	if !json.Valid(data) {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOpenAI, "structured response is not valid JSON", nil)
	}
	return &llm.Completion{Data: data}, nil
}

var _ llm.Transport = (*Client)(nil)
var _ llm.ModelDescriber = (*Client)(nil)
