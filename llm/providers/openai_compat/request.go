package openai_compat

import (
	"encoding/json"

	"github.com/openllm/openllm-go/llm"
)

// buildRequest serializes the canonical request into the OpenAI dialect.
// Tool results become role "tool" messages referencing their call id;
// assistant tool-use parts become the tool_calls array.
func buildRequest(req llm.ChatRequest) map[string]any {
	out := map[string]any{
		"model":    req.Config.Model,
		"messages": buildMessages(req.Messages),
	}

	if req.Options.Temperature != nil {
		out["temperature"] = *req.Options.Temperature
	}
	if req.Options.MaxTokens != nil {
		out["max_tokens"] = *req.Options.MaxTokens
	}
	if len(req.Options.Stop) > 0 {
		out["stop"] = req.Options.Stop
	}
	if len(req.Options.Tools) > 0 {
		out["tools"] = buildTools(req.Options.Tools)
		if req.Options.ToolChoice != "" {
			out["tool_choice"] = string(req.Options.ToolChoice)
		}
	}
	return out
}

func buildMessages(msgs []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		var text string
		var toolCalls []map[string]any
		var results []*llm.ToolResult

		for _, p := range m.Parts {
			switch p.Type {
			case llm.ContentPartText:
				text += p.Text
			case llm.ContentPartToolUse:
				args := "{}"
				if len(p.ToolUse.Input) > 0 {
					args = string(p.ToolUse.Input)
				}
				toolCalls = append(toolCalls, map[string]any{
					"id":   p.ToolUse.ID,
					"type": "function",
					"function": map[string]any{
						"name":      p.ToolUse.Name,
						"arguments": args,
					},
				})
			case llm.ContentPartToolResult:
				results = append(results, p.ToolResult)
			}
		}

		if text != "" || len(toolCalls) > 0 || len(results) == 0 {
			wm := map[string]any{"role": string(m.Role), "content": text}
			if len(toolCalls) > 0 {
				wm["tool_calls"] = toolCalls
			}
			out = append(out, wm)
		}

		// Tool results are their own messages in this dialect.
		for _, r := range results {
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": r.ToolUseID,
				"content":      r.Content,
			})
		}
	}
	return out
}

func buildTools(tools []llm.ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		params := json.RawMessage(`{"type":"object"}`)
		if len(t.InputSchema) > 0 {
			params = t.InputSchema
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return out
}
