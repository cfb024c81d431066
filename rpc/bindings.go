package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/openllm/openllm-go/config"
	"github.com/openllm/openllm-go/resolver"
	"github.com/openllm/openllm-go/secrets"
)

// BindSecrets serves the secrets.* methods from a resolver.
func BindSecrets(s *Server, r *resolver.SecretResolver) {
	s.Handle(MethodSecretsGet, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(raw, &params); err != nil || params.Key == "" {
			return nil, &Error{Code: CodeInternal, Message: "secrets.get requires key"}
		}
		res, err := r.Resolve(ctx, params.Key)
		if err != nil {
			if errors.Is(err, secrets.ErrNotFound) {
				return map[string]any{"found": false}, nil
			}
			return nil, err
		}
		return map[string]any{
			"found":         true,
			"value":         res.Value,
			"source":        res.Source,
			"source_detail": res.SourceDetail,
		}, nil
	})

	s.Handle(MethodSecretsStore, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Key         string `json:"key"`
			Value       string `json:"value"`
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal(raw, &params); err != nil || params.Key == "" {
			return nil, &Error{Code: CodeInternal, Message: "secrets.store requires key"}
		}
		dest, err := r.Store(ctx, params.Key, params.Value, params.Destination)
		if err != nil {
			return nil, err
		}
		return map[string]any{"destination": dest}, nil
	})

	s.Handle(MethodSecretsDelete, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Key         string `json:"key"`
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal(raw, &params); err != nil || params.Key == "" {
			return nil, &Error{Code: CodeInternal, Message: "secrets.delete requires key"}
		}
		if err := r.Delete(ctx, params.Key, params.Destination); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	})

	s.Handle(MethodSecretsList, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return map[string]any{"sources": r.Sources(ctx)}, nil
	})
}

// BindConfig serves the config.* methods from a resolver.
func BindConfig(s *Server, r *resolver.ConfigResolver) {
	s.Handle(MethodConfigGet, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Provider string `json:"provider"`
			Scope    string `json:"scope"`
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &Error{Code: CodeInternal, Message: "config.get: bad params"}
		}

		var recs []config.ProviderConfigRecord
		var err error
		if params.Scope != "" {
			recs, err = r.ProvidersAtScope(ctx, config.Scope(params.Scope))
		} else {
			recs, err = r.GetAllProviders(ctx)
		}
		if err != nil {
			return nil, err
		}

		if params.Provider != "" && params.Provider != "*" {
			key := strings.ToLower(params.Provider)
			filtered := recs[:0]
			for _, rec := range recs {
				if rec.Key() == key {
					filtered = append(filtered, rec)
				}
			}
			recs = filtered
		}
		return map[string]any{"providers": recs}, nil
	})

	s.Handle(MethodConfigSet, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Scope    string                      `json:"scope"`
			Provider config.ProviderConfigRecord `json:"provider"`
		}
		if err := json.Unmarshal(raw, &params); err != nil || params.Provider.Name == "" {
			return nil, &Error{Code: CodeInternal, Message: "config.set requires provider.name"}
		}
		// Clients may leave scope to the host; user is the host default.
		scope := config.Scope(params.Scope)
		if scope == "" {
			scope = config.ScopeUser
		}
		if err := r.SetProvider(ctx, scope, params.Provider); err != nil {
			return nil, err
		}
		return map[string]any{}, nil
	})
}

// BindWorkspace serves workspace.getRoot with a fixed root.
func BindWorkspace(s *Server, root string) {
	s.Handle(MethodWorkspaceGetRoot, func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"root": root}, nil
	})
}
