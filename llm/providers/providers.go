// Package providers assembles the built-in adapter set. The registry is
// the closed set of vendors this library ships; embedders needing more
// construct llm.NewRegistry themselves.
package providers

import (
	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/providers/anthropic"
	"github.com/openllm/openllm-go/llm/providers/ollama"
	"github.com/openllm/openllm-go/llm/providers/openai"
)

// NewRegistry builds the default registry: openai, anthropic, ollama.
func NewRegistry() (*llm.Registry, error) {
	oa, err := openai.New()
	if err != nil {
		return nil, err
	}
	an, err := anthropic.New()
	if err != nil {
		return nil, err
	}
	ol, err := ollama.New()
	if err != nil {
		return nil, err
	}
	return llm.NewRegistry(oa, an, ol)
}
