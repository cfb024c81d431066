// Package ollama binds the openai_compat adapter to a local Ollama server.
// Ollama exposes the OpenAI dialect on /v1 and needs no API key.
package ollama

import (
	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/providers/openai_compat"
)

func Metadata() llm.ProviderMetadata {
	return llm.ProviderMetadata{
		ID:             "ollama",
		DisplayName:    "Ollama",
		DefaultAPIBase: "http://localhost:11434",
		RequiresAPIKey: false,
		DefaultModels: []llm.ModelInfo{
			{ID: "llama3.1", Name: "Llama 3.1", ContextLength: 131072, Capabilities: llm.ModelCapabilities{ToolCalling: true, Streaming: true}},
			{ID: "qwen2.5", Name: "Qwen 2.5", ContextLength: 32768, Capabilities: llm.ModelCapabilities{ToolCalling: true, Streaming: true}},
			{ID: "mistral", Name: "Mistral", ContextLength: 32768, Capabilities: llm.ModelCapabilities{Streaming: true}},
		},
	}
}

func New(opts ...openai_compat.Option) (*openai_compat.Provider, error) {
	return openai_compat.New(Metadata(), opts...)
}
