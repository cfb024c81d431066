package rpc

import (
	"context"
	"fmt"

	"github.com/openllm/openllm-go/config"
)

// ConfigStore adapts a bridge client into the config.Store contract.
// Resolvers mount it as a remote layer; its scope decides both where it
// ranks in the merge and which host scope its writes target.
type ConfigStore struct {
	client *Client
	scope  config.Scope
}

// NewConfigStore wraps the client. scope is the host scope this store
// represents; writes forward it, and a scope outside the file scopes
// lets the host pick its own default.
func NewConfigStore(client *Client, scope config.Scope) *ConfigStore {
	return &ConfigStore{client: client, scope: scope}
}

func (s *ConfigStore) Scope() config.Scope { return s.scope }

func (s *ConfigStore) Path() string {
	return "host:" + s.client.Endpoint().Name
}

func (s *ConfigStore) Exists() bool {
	return s.client.Ping(context.Background()) == nil
}

func (s *ConfigStore) List(ctx context.Context) ([]config.ProviderConfigRecord, error) {
	var res struct {
		Providers []config.ProviderConfigRecord `json:"providers"`
	}
	if err := s.client.Call(ctx, MethodConfigGet, map[string]any{"provider": "*"}, &res); err != nil {
		return nil, fmt.Errorf("rpc: list host config: %w", err)
	}
	// Host-side provenance does not survive the hop; the mounting
	// resolver restamps it.
	for i := range res.Providers {
		res.Providers[i].Source = ""
		res.Providers[i].SourceDetail = ""
	}
	return res.Providers, nil
}

func (s *ConfigStore) Upsert(ctx context.Context, rec config.ProviderConfigRecord) error {
	params := map[string]any{"provider": rec}
	switch s.scope {
	case config.ScopeUser, config.ScopeWorkspace:
		params["scope"] = string(s.scope)
	}
	if err := s.client.Call(ctx, MethodConfigSet, params, nil); err != nil {
		return fmt.Errorf("rpc: store host config: %w", err)
	}
	return nil
}

// Remove is not part of the bridge protocol; hosts own their records.
func (s *ConfigStore) Remove(_ context.Context, name string) error {
	return fmt.Errorf("rpc: host config store cannot remove %q", name)
}
