package anthropic

import (
	"encoding/json"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/aschepis/backscratcher/llmguard/llm"
	"github.com/samber/lo"
)

// ToMessageParam converts an llm.Message to an Anthropic MessageParam.
// System messages are not valid here; see SplitSystem.
func ToMessageParam(msg llm.Message) anthropic.MessageParam {
	block := anthropic.NewTextBlock(msg.Content)
	if msg.Role == llm.RoleAssistant {
		return anthropic.NewAssistantMessage(block)
	}
	return anthropic.NewUserMessage(block)
}

// SplitSystem moves system messages into Anthropic's dedicated system
// blocks and converts the rest.
func SplitSystem(msgs []llm.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	system, rest := lo.FilterReject(msgs, func(m llm.Message, _ int) bool {
		return m.Role == llm.RoleSystem
	})
	blocks := lo.Map(system, func(m llm.Message, _ int) anthropic.TextBlockParam {
		return anthropic.TextBlockParam{Text: m.Content}
	})
	params := lo.Map(rest, func(m llm.Message, _ int) anthropic.MessageParam {
		return ToMessageParam(m)
	})
	return blocks, params
}

// ToInputSchema converts a raw JSON Schema into the SDK's tool input schema.
// Everything beyond properties and required is kept in ExtraFields.
func ToInputSchema(raw json.RawMessage) anthropic.ToolInputSchemaParam {
	var full map[string]any
	if err := json.Unmarshal(raw, &full); err != nil {
		return anthropic.ToolInputSchemaParam{}
	}

	param := anthropic.ToolInputSchemaParam{}
	if props, ok := full["properties"]; ok {
		param.Properties = props
		delete(full, "properties")
	}
	if req, ok := full["required"].([]any); ok {
		param.Required = lo.FilterMap(req, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			return s, ok
		})
	}
	delete(full, "required")
	// The SDK always sends type "object".
	delete(full, "type")

	if len(full) > 0 {
		param.ExtraFields = full
	}
	return param
}

// ToMessageNewParams builds the request for one invocation. Structured
// calls force a single tool named after the extraction whose input schema is
// the caller's schema.
func ToMessageNewParams(prompt llm.Prompt, opts llm.CallOptions) anthropic.MessageNewParams {
	system, msgs := SplitSystem(prompt.AsMessages())

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(opts.Model),
		MaxTokens: int64(opts.Bound.MaxOutputTokens),
		Messages:  msgs,
		System:    system,
	}
	if t := opts.Bound.Temperature; t != nil {
		params.Temperature = anthropic.Float(*t)
	}
	if p := opts.Bound.TopP; p != nil {
		params.TopP = anthropic.Float(*p)
	}
	if len(opts.Runtime.Stop) > 0 {
		params.StopSequences = opts.Runtime.Stop
	}

	if s := opts.Schema; s != nil {
		name := s.ExtractionName()
		tool := &anthropic.ToolParam{
			Name:        name,
			InputSchema: ToInputSchema(s.Schema),
		}
		if s.Description != "" {
			tool.Description = anthropic.String(s.Description)
		}
		params.Tools = []anthropic.ToolUnionParam{{OfTool: tool}}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(name)
	}
	return params
}
