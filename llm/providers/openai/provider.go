// Package openai binds the openai_compat adapter to api.openai.com with
// compiled model metadata.
package openai

import (
	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/providers/openai_compat"
)

func Metadata() llm.ProviderMetadata {
	return llm.ProviderMetadata{
		ID:             "openai",
		DisplayName:    "OpenAI",
		DefaultAPIBase: "https://api.openai.com",
		RequiresAPIKey: true,
		DefaultModels: []llm.ModelInfo{
			{ID: "gpt-4o", Name: "GPT-4o", ContextLength: 128000, Capabilities: llm.FullCapabilities()},
			{ID: "gpt-4o-mini", Name: "GPT-4o mini", ContextLength: 128000, Capabilities: llm.FullCapabilities()},
			{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", ContextLength: 128000, Capabilities: llm.FullCapabilities()},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", ContextLength: 16385, Capabilities: llm.ModelCapabilities{ToolCalling: true, Streaming: true}},
		},
	}
}

func New(opts ...openai_compat.Option) (*openai_compat.Provider, error) {
	return openai_compat.New(Metadata(), opts...)
}
