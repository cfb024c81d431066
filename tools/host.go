package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openllm/openllm-go/rpc"
)

// AttachHost lists a host endpoint's tools over the bridge and mounts a
// proxy for each. Host tool names keep their own namespace; a host
// offering a name under the reserved prefix is rejected rather than
// shadowing an internal tool.
func AttachHost(ctx context.Context, r *Registry, client *rpc.Client) error {
	var res struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := client.Call(ctx, rpc.MethodToolsList, map[string]any{"include_internal": false}, &res); err != nil {
		return fmt.Errorf("tools: list host tools: %w", err)
	}

	for _, desc := range res.Tools {
		desc := desc
		err := r.Register(ToolDescriptor{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		}, func(ctx context.Context, input json.RawMessage) (ToolOutput, error) {
			var out ToolOutput
			params := map[string]any{"name": desc.Name, "arguments": input}
			if err := client.Call(ctx, rpc.MethodToolsCall, params, &out); err != nil {
				return ToolOutput{}, fmt.Errorf("tools: call %s on host %s: %w", desc.Name, client.Endpoint().Name, err)
			}
			return out, nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// BindServer serves tools.list and tools.call from a registry, for
// hosts exposing their tools over the bridge.
func BindServer(s *rpc.Server, r *Registry) {
	s.Handle(rpc.MethodToolsList, func(_ context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			IncludeInternal bool `json:"include_internal"`
		}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &params)
		}
		return map[string]any{"tools": r.ListTools(params.IncludeInternal)}, nil
	})

	s.Handle(rpc.MethodToolsCall, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(raw, &params); err != nil || params.Name == "" {
			return nil, &rpc.Error{Code: rpc.CodeInternal, Message: "tools.call requires name"}
		}
		out, err := r.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}
