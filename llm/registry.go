package llm

const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
)

// OpenAIWindows holds context sizes for OpenAI chat models.
// Based on https://platform.openai.com/docs/models/overview
var OpenAIWindows = WindowTable{
	Entries: []WindowEntry{
		{Pattern: "gpt-4.1", Capacity: 1047576},
		{Pattern: "gpt-4o", Capacity: 128000},
		{Pattern: "gpt-4-turbo", Capacity: 128000},
		{Pattern: "gpt-4-32k", Capacity: 32768},
		{Pattern: "gpt-4", Capacity: 8192},
		{Pattern: "gpt-3.5-turbo-16k", Capacity: 16385},
		{Pattern: "gpt-3.5-turbo-0125", Capacity: 16385},
		{Pattern: "gpt-3.5-turbo-1106", Capacity: 16385},
		{Pattern: "gpt-3.5-turbo-instruct", Capacity: 4096},
		{Pattern: "gpt-3.5-turbo", Capacity: 4096},
		{Pattern: "o1-mini", Capacity: 128000},
		{Pattern: "o3-mini", Capacity: 200000},
	},
	Default: DefaultContextWindow,
}

// AnthropicWindows holds context sizes for Claude models.
var AnthropicWindows = WindowTable{
	Entries: []WindowEntry{
		{Pattern: "claude-3", Capacity: 200000},
		{Pattern: "claude-sonnet-4", Capacity: 200000},
		{Pattern: "claude-opus-4", Capacity: 200000},
		{Pattern: "claude-haiku-4", Capacity: 200000},
		{Pattern: "claude-2.1", Capacity: 200000},
		{Pattern: "claude-2", Capacity: 100000},
		{Pattern: "claude-instant", Capacity: 100000},
	},
	Default: DefaultContextWindow,
}

// OllamaWindows holds default context sizes for common local model families.
var OllamaWindows = WindowTable{
	Entries: []WindowEntry{
		{Pattern: "llama3.2", Capacity: 131072},
		{Pattern: "llama3.1", Capacity: 131072},
		{Pattern: "llama3", Capacity: 8192},
		{Pattern: "gpt-oss", Capacity: 131072},
		{Pattern: "mistral", Capacity: 32768},
		{Pattern: "mixtral", Capacity: 32768},
		{Pattern: "qwen2.5", Capacity: 32768},
		{Pattern: "gemma2", Capacity: 8192},
		{Pattern: "phi3", Capacity: 4096},
	},
	Default: DefaultContextWindow,
}

// WindowTableFor returns the built-in table for a provider family.
// Unknown providers get an empty table, so every lookup falls back.
func WindowTableFor(provider string) WindowTable {
	switch provider {
	case ProviderOpenAI:
		return OpenAIWindows
	case ProviderAnthropic:
		return AnthropicWindows
	case ProviderOllama:
		return OllamaWindows
	default:
		return WindowTable{Default: DefaultContextWindow}
	}
}

// IsKnownProvider reports whether a provider family has a transport adapter.
func IsKnownProvider(provider string) bool {
	switch provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	default:
		return false
	}
}
