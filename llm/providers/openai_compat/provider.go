// Package openai_compat implements the Provider contract for every vendor
// speaking the OpenAI chat-completions dialect: a flat SSE stream of
// incremental deltas interleaving text and tool-argument fragments under a
// running index.
//
// Vendor bindings (openai, ollama, ...) wrap this package with their own
// metadata and defaults.
package openai_compat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/internal/transport"
)

type Provider struct {
	meta llm.ProviderMetadata
	path string

	tr *transport.Client
}

type Option func(*Provider) error

func New(meta llm.ProviderMetadata, opts ...Option) (*Provider, error) {
	base := meta.DefaultAPIBase
	if base == "" {
		base = "https://api.openai.com"
	}
	tr, err := transport.New(base, nil)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		meta: meta,
		path: "/v1/chat/completions",
		tr:   tr,
	}
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

func WithDefaultHeader(key, value string) Option {
	return func(p *Provider) error {
		p.tr.DefaultHeaders.Add(key, value)
		return nil
	}
}

func WithChatCompletionsPath(path string) Option {
	return func(p *Provider) error {
		p.path = path
		return nil
	}
}

func (p *Provider) Metadata() llm.ProviderMetadata { return p.meta }

func (p *Provider) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.Stream, error) {
	if err := req.Validate(p.meta); err != nil {
		return nil, err
	}

	tr, err := p.transportFor(req.Config)
	if err != nil {
		return nil, &llm.LLMError{Provider: p.meta.ID, Kind: llm.ErrKindBadRequest, Message: "invalid api_base " + req.Config.APIBase, Cause: err}
	}

	wreq := buildRequest(req)
	wreq["stream"] = true

	hdr := make(http.Header)
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "text/event-stream")
	if req.Config.APIKey != "" {
		hdr.Set("Authorization", "Bearer "+req.Config.APIKey)
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

// transportFor honors a per-request base URL override without touching the
// shared client.
func (p *Provider) transportFor(cfg llm.RequestConfig) (*transport.Client, error) {
	if cfg.APIBase == "" || cfg.APIBase == p.tr.BaseURL.String() {
		return p.tr, nil
	}
	tr, err := transport.New(cfg.APIBase, p.tr.HTTPClient)
	if err != nil {
		return nil, err
	}
	tr.DefaultHeaders = p.tr.DefaultHeaders.Clone()
	tr.UserAgent = p.tr.UserAgent
	tr.Logger = p.tr.Logger
	return tr, nil
}
