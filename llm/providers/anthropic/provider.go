// Package anthropic implements the Provider contract for the Anthropic
// Messages API: a block-structured event stream (start/delta/stop per
// content block) normalized into the canonical chunk vocabulary.
package anthropic

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/internal/transport"
)

const apiVersion = "2023-06-01"

// The Messages API requires max_tokens; this is the value used when the
// caller does not set one.
const defaultMaxTokens = 4096

type Provider struct {
	meta llm.ProviderMetadata
	path string

	tr *transport.Client
}

type Option func(*Provider) error

func Metadata() llm.ProviderMetadata {
	return llm.ProviderMetadata{
		ID:             "anthropic",
		DisplayName:    "Anthropic",
		DefaultAPIBase: "https://api.anthropic.com",
		RequiresAPIKey: true,
		DefaultModels: []llm.ModelInfo{
			{ID: "claude-3-5-sonnet-latest", Name: "Claude 3.5 Sonnet", ContextLength: 200000, Capabilities: llm.FullCapabilities()},
			{ID: "claude-3-5-haiku-latest", Name: "Claude 3.5 Haiku", ContextLength: 200000, Capabilities: llm.FullCapabilities()},
			{ID: "claude-3-opus-latest", Name: "Claude 3 Opus", ContextLength: 200000, Capabilities: llm.FullCapabilities()},
		},
	}
}

func New(opts ...Option) (*Provider, error) {
	meta := Metadata()
	tr, err := transport.New(meta.DefaultAPIBase, nil)
	if err != nil {
		return nil, err
	}
	p := &Provider{meta: meta, path: "/v1/messages", tr: tr}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.tr.Logger == nil {
		p.tr.Logger = slog.Default()
	}
	return p, nil
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) error {
		p.tr.HTTPClient = c
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) error {
		if logger != nil {
			p.tr.Logger = logger
		}
		return nil
	}
}

func (p *Provider) Metadata() llm.ProviderMetadata { return p.meta }

func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if err := req.Validate(p.meta); err != nil {
		return nil, err
	}

	tr := p.tr
	if req.Config.APIBase != "" && req.Config.APIBase != p.tr.BaseURL.String() {
		var err error
		tr, err = transport.New(req.Config.APIBase, p.tr.HTTPClient)
		if err != nil {
			return nil, &llm.LLMError{Provider: p.meta.ID, Kind: llm.ErrKindBadRequest, Message: "invalid api_base " + req.Config.APIBase, Cause: err}
		}
		tr.UserAgent = p.tr.UserAgent
		tr.Logger = p.tr.Logger
	}

	wreq := buildRequest(req)
	wreq["stream"] = true

	hdr := make(http.Header)
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "text/event-stream")
	hdr.Set("anthropic-version", apiVersion)
	if req.Config.APIKey != "" {
		hdr.Set("x-api-key", req.Config.APIKey)
	}

	resp, err := tr.DoStream(ctx, http.MethodPost, p.path, hdr, wreq)
	if err != nil {
		var se *transport.HTTPStatusError
		if errors.As(err, &se) {
			return nil, p.mapError(err, se.Body)
		}
		return nil, p.mapError(err, nil)
	}

	return newStream(ctx, p.meta.ID, resp), nil
}
