package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openllm/openllm-go/config"
)

// ScopeRemote names host-provided configuration with no file scope of
// its own; such a layer ranks below everything local.
const ScopeRemote config.Scope = "remote"

// ConfigResolver merges provider records across scopes. Narrower scope
// beats broader: workspace over user, and at equal scope the local file
// beats the remote layer. The remote store's own Scope() decides which
// tier it occupies. An override replaces the whole record: a
// workspace entry for a provider hides every field of the user entry,
// including ones the workspace record leaves unset.
type ConfigResolver struct {
	remote    config.Store
	user      config.Store
	workspace config.Store
}

type ConfigOption func(*ConfigResolver)

// WithRemote mounts a host-provided store under the file scopes.
func WithRemote(store config.Store) ConfigOption {
	return func(r *ConfigResolver) { r.remote = store }
}

// NewConfigResolver builds a resolver over the two file scopes. Either
// store may be nil when that scope does not apply.
func NewConfigResolver(user, workspace config.Store, opts ...ConfigOption) *ConfigResolver {
	r := &ConfigResolver{user: user, workspace: workspace}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetAllProviders returns the merged view, sorted by name, with
// provenance filled in.
func (r *ConfigResolver) GetAllProviders(ctx context.Context) ([]config.ProviderConfigRecord, error) {
	merged := make(map[string]config.ProviderConfigRecord)

	type layerDef struct {
		store config.Store
		scope config.Scope
	}
	var layers []layerDef
	remoteTier := config.Scope("")
	if r.remote != nil {
		remoteTier = r.remote.Scope()
	}
	// Lowest priority first. A user-scoped (or scopeless) remote sits
	// under the user file; a workspace-scoped remote sits under the
	// workspace file but above the user file.
	if r.remote != nil && remoteTier != config.ScopeWorkspace {
		layers = append(layers, layerDef{r.remote, ScopeRemote})
	}
	layers = append(layers, layerDef{r.user, config.ScopeUser})
	if r.remote != nil && remoteTier == config.ScopeWorkspace {
		layers = append(layers, layerDef{r.remote, ScopeRemote})
	}
	layers = append(layers, layerDef{r.workspace, config.ScopeWorkspace})

	for _, layer := range layers {
		if layer.store == nil {
			continue
		}
		recs, err := layer.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolver: list %s scope: %w", layer.scope, err)
		}
		for _, rec := range recs {
			out := rec.Clone()
			out.Source = string(layer.scope)
			out.SourceDetail = layer.store.Path()
			merged[rec.Key()] = out
		}
	}

	out := make([]config.ProviderConfigRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// GetProvider returns the effective record for a name, or false when no
// scope defines it. Lookup is case-insensitive.
func (r *ConfigResolver) GetProvider(ctx context.Context, name string) (config.ProviderConfigRecord, bool, error) {
	all, err := r.GetAllProviders(ctx)
	if err != nil {
		return config.ProviderConfigRecord{}, false, err
	}
	key := strings.ToLower(name)
	for _, rec := range all {
		if rec.Key() == key {
			return rec, true, nil
		}
	}
	return config.ProviderConfigRecord{}, false, nil
}

// ProvidersAtScope bypasses merging and returns one scope's records as
// stored, for diagnostics and round-trip export.
func (r *ConfigResolver) ProvidersAtScope(ctx context.Context, scope config.Scope) ([]config.ProviderConfigRecord, error) {
	store, err := r.storeFor(scope)
	if err != nil {
		return nil, err
	}
	return store.List(ctx)
}

// SetProvider writes the record to exactly the named scope. Other scopes
// are never touched.
func (r *ConfigResolver) SetProvider(ctx context.Context, scope config.Scope, rec config.ProviderConfigRecord) error {
	store, err := r.storeFor(scope)
	if err != nil {
		return err
	}
	rec.Source = ""
	rec.SourceDetail = ""
	return store.Upsert(ctx, rec)
}

// RemoveProvider deletes the record from exactly the named scope.
func (r *ConfigResolver) RemoveProvider(ctx context.Context, scope config.Scope, name string) error {
	store, err := r.storeFor(scope)
	if err != nil {
		return err
	}
	return store.Remove(ctx, name)
}

func (r *ConfigResolver) storeFor(scope config.Scope) (config.Store, error) {
	var store config.Store
	switch scope {
	case config.ScopeUser:
		store = r.user
	case config.ScopeWorkspace:
		store = r.workspace
	case ScopeRemote:
		store = r.remote
	default:
		return nil, fmt.Errorf("resolver: unknown scope %q", scope)
	}
	if store == nil {
		return nil, errors.New("resolver: scope " + string(scope) + " is not mounted")
	}
	return store, nil
}
