package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openllm/openllm-go/config"
	"github.com/openllm/openllm-go/resolver"
	"github.com/openllm/openllm-go/secrets"
)

// InternalConfig wires the registry's bookkeeping tools. Nil fields skip
// the corresponding tool family.
type InternalConfig struct {
	Secrets       *resolver.SecretResolver
	Config        *resolver.ConfigResolver
	WorkspaceRoot string
}

// NewWithInternal builds a registry with the openllm_* tools mounted.
func NewWithInternal(cfg InternalConfig) *Registry {
	r := New()
	if cfg.Secrets != nil {
		r.mountSecretTools(cfg.Secrets)
	}
	if cfg.Config != nil {
		r.mountConfigTools(cfg.Config)
	}
	if cfg.WorkspaceRoot != "" {
		r.registerInternal(ToolDescriptor{
			Name:        "openllm_workspace_root",
			Description: "Return the workspace root directory",
			InputSchema: objectSchema(),
		}, func(context.Context, json.RawMessage) (ToolOutput, error) {
			return jsonOutput(map[string]any{"root": cfg.WorkspaceRoot})
		})
	}
	return r
}

func (r *Registry) mountSecretTools(sr *resolver.SecretResolver) {
	r.registerInternal(ToolDescriptor{
		Name:        "openllm_secrets_get",
		Description: "Resolve a secret through the configured store chain",
		InputSchema: objectSchema("key"),
	}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
		var params struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(input, &params); err != nil || params.Key == "" {
			return ToolOutput{}, fmt.Errorf("openllm_secrets_get requires key")
		}
		res, err := sr.Resolve(ctx, params.Key)
		if err != nil {
			if errors.Is(err, secrets.ErrNotFound) {
				return jsonOutput(map[string]any{"found": false})
			}
			return ToolOutput{Content: err.Error(), IsError: true}, nil
		}
		return jsonOutput(map[string]any{
			"found":         true,
			"value":         res.Value,
			"source":        res.Source,
			"source_detail": res.SourceDetail,
		})
	})

	r.registerInternal(ToolDescriptor{
		Name:        "openllm_secrets_store",
		Description: "Store a secret, routing to a destination store",
		InputSchema: objectSchema("key", "value"),
	}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
		var params struct {
			Key         string `json:"key"`
			Value       string `json:"value"`
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal(input, &params); err != nil || params.Key == "" {
			return ToolOutput{}, fmt.Errorf("openllm_secrets_store requires key")
		}
		dest, err := sr.Store(ctx, params.Key, params.Value, params.Destination)
		if err != nil {
			return ToolOutput{Content: err.Error(), IsError: true}, nil
		}
		return jsonOutput(map[string]any{"destination": dest})
	})

	r.registerInternal(ToolDescriptor{
		Name:        "openllm_secrets_delete",
		Description: "Delete a secret from its store",
		InputSchema: objectSchema("key"),
	}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
		var params struct {
			Key         string `json:"key"`
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal(input, &params); err != nil || params.Key == "" {
			return ToolOutput{}, fmt.Errorf("openllm_secrets_delete requires key")
		}
		if err := sr.Delete(ctx, params.Key, params.Destination); err != nil {
			return ToolOutput{Content: err.Error(), IsError: true}, nil
		}
		return jsonOutput(map[string]any{"deleted": true})
	})
}

func (r *Registry) mountConfigTools(cr *resolver.ConfigResolver) {
	r.registerInternal(ToolDescriptor{
		Name:        "openllm_config_get",
		Description: "Read merged or per-scope provider configuration",
		InputSchema: objectSchema(),
	}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
		var params struct {
			Provider string `json:"provider"`
			Scope    string `json:"scope"`
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &params); err != nil {
				return ToolOutput{}, fmt.Errorf("openllm_config_get: bad input")
			}
		}
		var recs []config.ProviderConfigRecord
		var err error
		if params.Scope != "" {
			recs, err = cr.ProvidersAtScope(ctx, config.Scope(params.Scope))
		} else {
			recs, err = cr.GetAllProviders(ctx)
		}
		if err != nil {
			return ToolOutput{Content: err.Error(), IsError: true}, nil
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
		return jsonOutput(map[string]any{"providers": recs})
	})

	r.registerInternal(ToolDescriptor{
		Name:        "openllm_config_set",
		Description: "Write a provider record to one scope",
		InputSchema: objectSchema("scope", "provider"),
	}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
		var params struct {
			Scope    string                      `json:"scope"`
			Provider config.ProviderConfigRecord `json:"provider"`
		}
		if err := json.Unmarshal(input, &params); err != nil || params.Provider.Name == "" {
			return ToolOutput{}, fmt.Errorf("openllm_config_set requires provider.name")
		}
		if err := cr.SetProvider(ctx, config.Scope(params.Scope), params.Provider); err != nil {
			return ToolOutput{Content: err.Error(), IsError: true}, nil
		}
		return jsonOutput(map[string]any{"ok": true})
	})
}

func jsonOutput(v any) (ToolOutput, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ToolOutput{}, err
	}
	return ToolOutput{Content: string(data)}, nil
}

func objectSchema(required ...string) json.RawMessage {
	schema := map[string]any{"type": "object"}
	if len(required) > 0 {
		schema["required"] = required
	}
	data, _ := json.Marshal(schema)
	return data
}
