package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// ListModelIDs implements llm.Transport.ListModelIDs. The payload is read
// loosely so a missing data array can be told apart from an empty one.
func (c *Client) ListModelIDs(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !gjson.ValidBytes(body) || !data.IsArray() {
		return nil, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOpenAI, "invalid response format from models API", nil)
	}

	ids := lo.FilterMap(data.Array(), func(m gjson.Result, _ int) (string, bool) {
		id := m.Get("id").String()
		return id, id != ""
	})
	if len(ids) == 0 {
		return nil, llm.NewProviderError(llm.ErrorKindNoModelsFound, llm.ProviderOpenAI, "no models found in API response", nil)
	}

	c.logger.Debug().Int("count", len(ids)).Msg("Listed models")
	return ids, nil
}

// ModelContextWindow implements llm.ModelDescriber. Compatible servers report
// context_length either at the top level or on the first data entry.
func (c *Client) ModelContextWindow(ctx context.Context, model string) (int, error) {
	body, err := c.get(ctx, "/models/"+url.PathEscape(model))
	if err != nil {
		return 0, err
	}

	for _, path := range []string{"context_length", "data.0.context_length", "context_window"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Int() > 0 {
			return int(v.Int()), nil
		}
	}
	return 0, llm.NewProviderError(llm.ErrorKindInvalidResponse, llm.ProviderOpenAI,
		fmt.Sprintf("model %s does not report a context length", model), nil)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, toSignal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewConnectionSignal("failed to read response body", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, signalFromBody(resp.StatusCode, body)
	}
	return body, nil
}
