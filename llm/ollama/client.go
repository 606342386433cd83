package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// Client implements llm.Transport and llm.ModelDescriber for Ollama's API.
type Client struct {
	client *api.Client
	logger zerolog.Logger
}

// NewClient creates a new Client.
// If host is empty, it will use the default from environment (OLLAMA_HOST or http://localhost:11434).
// If httpClient is nil, http.DefaultClient is used.
func NewClient(host string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	var client *api.Client

	if host != "" {
		baseURL, err := parseHost(host)
		if err != nil {
			return nil, fmt.Errorf("invalid host: %w", err)
		}
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(baseURL, httpClient)
	} else {
		var err error
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
	}

	return &Client{
		client: client,
		logger: logger.With().Str("component", "ollama").Logger(),
	}, nil
}

// parseHost parses a host string into a URL.
func parseHost(host string) (*url.URL, error) {
	// If host doesn't have a scheme, add http://
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return url.Parse(host)
}

// Invoke implements llm.Transport.Invoke.
func (c *Client) Invoke(ctx context.Context, prompt llm.Prompt, opts llm.CallOptions) (*llm.Completion, error) {
	req := ToChatRequest(prompt, opts)
	c.logger.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Bool("structured", opts.Structured()).
		Msg("Sending chat request")

	var chatResp api.ChatResponse
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		chatResp = resp
		return nil
	})
	if err != nil {
		return nil, toSignal(err)
	}

	content := chatResp.Message.Content
	if !opts.Structured() {
		return &llm.Completion{Text: content}, nil
	}

	data := json.RawMessage(strings.TrimSpace(content))
	if !json.Valid(data) {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOllama, "structured response is not valid JSON", nil)
	}
	return &llm.Completion{Data: data}, nil
}

// ListModelIDs implements llm.Transport.ListModelIDs.
func (c *Client) ListModelIDs(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, toSignal(err)
	}
	if resp == nil {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOllama, "empty response from tags API", nil)
	}

	ids := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		ids = append(ids, m.Name)
	}
	if len(ids) == 0 {
		return nil, llm.NewProviderError(llm.ErrorKindNoModelsFound, llm.ProviderOllama, "no models found in API response", nil)
	}
	c.logger.Debug().Int("count", len(ids)).Msg("Listed models")
	return ids, nil
}

// ModelContextWindow implements llm.ModelDescriber. Ollama reports the
// window as <architecture>.context_length in the model info.
func (c *Client) ModelContextWindow(ctx context.Context, model string) (int, error) {
	resp, err := c.client.Show(ctx, &api.ShowRequest{Model: model})
	if err != nil {
		return 0, toSignal(err)
	}
	for k, v := range resp.ModelInfo {
		if !strings.HasSuffix(k, ".context_length") {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), nil
		case int:
			return n, nil
		case int64:
			return int(n), nil
		}
	}
	return 0, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOllama,
		fmt.Sprintf("model %s does not report a context length", model), nil)
}

var _ llm.Transport = (*Client)(nil)
var _ llm.ModelDescriber = (*Client)(nil)
