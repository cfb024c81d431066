package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider is the capability surface every vendor adapter implements.
type Provider interface {
	Metadata() ProviderMetadata
	StreamChat(ctx context.Context, req ChatRequest) (Stream, error)
}

// Registry holds a closed set of adapters, resolved once at construction.
// Lookups are by lower-cased provider id.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		id := strings.ToLower(p.Metadata().ID)
		if id == "" {
			return nil, fmt.Errorf("llm: provider with empty id")
		}
		if _, exists := r.providers[id]; exists {
			return nil, fmt.Errorf("llm: duplicate provider %q", id)
		}
		r.providers[id] = p
	}
	return r, nil
}

func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[strings.ToLower(id)]
	return p, ok
}

// ListProviders returns the metadata of every registered adapter, sorted
// by id for stable display.
func (r *Registry) ListProviders() []ProviderMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderMetadata, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StreamChat dispatches to the adapter named by id.
func (r *Registry) StreamChat(ctx context.Context, id string, req ChatRequest) (Stream, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, &LLMError{Provider: id, Kind: ErrKindNotFound, Message: "unknown provider " + id}
	}
	return p.StreamChat(ctx, req)
}
