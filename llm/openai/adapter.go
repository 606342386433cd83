package openai

import (
	"github.com/aschepis/backscratcher/llmguard/llm"
	openai "github.com/sashabaranov/go-openai"
	"github.com/samber/lo"
)

// ToOpenAIMessages converts llm.Messages to OpenAI chat message format.
func ToOpenAIMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	return lo.Map(msgs, func(msg llm.Message, _ int) openai.ChatCompletionMessage {
		return ToOpenAIMessage(msg)
	})
}

// ToOpenAIMessage converts a single llm.Message to OpenAI format.
func ToOpenAIMessage(msg llm.Message) openai.ChatCompletionMessage {
	var role string
	switch msg.Role {
	case llm.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		role = openai.ChatMessageRoleSystem
	default:
		role = openai.ChatMessageRoleUser
	}
	return openai.ChatCompletionMessage{Role: role, Content: msg.Content}
}

// ToChatRequest builds a chat completion request for one invocation. Bound
// parameters become request fields and runtime stop sequences go to Stop.
func ToChatRequest(prompt llm.Prompt, opts llm.CallOptions) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    opts.Model,
		Messages: ToOpenAIMessages(prompt.AsMessages()),
	}

	b := opts.Bound
	if b.MaxOutputTokens > 0 {
		req.MaxTokens = b.MaxOutputTokens
	}
	if b.Temperature != nil {
		req.Temperature = float32(*b.Temperature)
	}
	if b.TopP != nil {
		req.TopP = float32(*b.TopP)
	}
	if b.PresencePenalty != nil {
		req.PresencePenalty = float32(*b.PresencePenalty)
	}
	if b.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*b.FrequencyPenalty)
	}
	if len(opts.Runtime.Stop) > 0 {
		req.Stop = opts.Runtime.Stop
	}

	if s := opts.Schema; s != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        s.ExtractionName(),
				Description: s.Description,
				Schema:      s.Schema,
			},
		}
	}
	return req
}
