package ollama

import (
	"encoding/json"

	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/ollama/ollama/api"
	"github.com/samber/lo"
)

// ToOllamaMessages converts llm.Messages to Ollama chat messages.
func ToOllamaMessages(msgs []llm.Message) []api.Message {
	return lo.Map(msgs, func(msg llm.Message, _ int) api.Message {
		return api.Message{Role: string(msg.Role), Content: msg.Content}
	})
}

// ToOptions maps bound and runtime parameters onto Ollama's options map.
func ToOptions(opts llm.CallOptions) map[string]any {
	options := make(map[string]any)
	b := opts.Bound
	if b.MaxOutputTokens > 0 {
		options["num_predict"] = b.MaxOutputTokens
	}
	if b.Temperature != nil {
		options["temperature"] = *b.Temperature
	}
	if b.TopP != nil {
		options["top_p"] = *b.TopP
	}
	if b.PresencePenalty != nil {
		options["presence_penalty"] = *b.PresencePenalty
	}
	if b.FrequencyPenalty != nil {
		options["frequency_penalty"] = *b.FrequencyPenalty
	}
	if len(opts.Runtime.Stop) > 0 {
		options["stop"] = opts.Runtime.Stop
	}
	return options
}

// ToChatRequest builds a non-streaming chat request. Structured calls pass
// the caller's schema as the response format.
func ToChatRequest(prompt llm.Prompt, opts llm.CallOptions) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    opts.Model,
		Messages: ToOllamaMessages(prompt.AsMessages()),
		Stream:   new(bool), // false for non-streaming
		Options:  ToOptions(opts),
	}
	if s := opts.Schema; s != nil {
		if len(s.Schema) > 0 {
			req.Format = s.Schema
		} else {
			req.Format = json.RawMessage(`"json"`)
		}
	}
	return req
}
