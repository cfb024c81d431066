package anthropic

import (
	"encoding/json"

	"github.com/openllm/openllm-go/llm"
)

// buildRequest serializes the canonical request into the Messages dialect:
// system messages lift into the top-level system field, tool results stay
// inline as content blocks, and consecutive same-role messages merge
// because the API requires strict user/assistant alternation.
func buildRequest(req llm.ChatRequest) map[string]any {
	system, rest := splitSystem(req.Messages)
	merged := mergeAlternating(rest)

	maxTokens := defaultMaxTokens
	if req.Options.MaxTokens != nil {
		maxTokens = *req.Options.MaxTokens
	}

	out := map[string]any{
		"model":      req.Config.Model,
		"max_tokens": maxTokens,
		"messages":   buildMessages(merged),
	}
	if system != "" {
		out["system"] = system
	}
	if req.Options.Temperature != nil {
		out["temperature"] = *req.Options.Temperature
	}
	if len(req.Options.Stop) > 0 {
		out["stop_sequences"] = req.Options.Stop
	}

	// The API has no "none" tool choice; omitting the tool list is the
	// equivalent.
	if len(req.Options.Tools) > 0 && req.Options.ToolChoice != llm.ToolChoiceNone {
		out["tools"] = buildTools(req.Options.Tools)
		switch req.Options.ToolChoice {
		case llm.ToolChoiceRequired:
			out["tool_choice"] = map[string]any{"type": "any"}
		default:
			out["tool_choice"] = map[string]any{"type": "auto"}
		}
	}
	return out
}

func splitSystem(msgs []llm.Message) (string, []llm.Message) {
	var system string
	rest := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			system += m.Text()
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

// mergeAlternating collapses consecutive same-role messages into one,
// concatenating their parts in order.
func mergeAlternating(msgs []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Parts = append(out[n-1].Parts, m.Parts...)
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

func buildMessages(msgs []llm.Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, map[string]any{
			"role":    string(m.Role),
			"content": buildContent(m.Parts),
		})
	}
	return out
}

func buildContent(parts []llm.ContentPart) []map[string]any {
	blocks := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case llm.ContentPartText:
			if p.Text == "" {
				continue
			}
			blocks = append(blocks, map[string]any{"type": "text", "text": p.Text})
		case llm.ContentPartToolUse:
			input := json.RawMessage(`{}`)
			if len(p.ToolUse.Input) > 0 {
				input = p.ToolUse.Input
			}
			blocks = append(blocks, map[string]any{
				"type":  "tool_use",
				"id":    p.ToolUse.ID,
				"name":  p.ToolUse.Name,
				"input": input,
			})
		case llm.ContentPartToolResult:
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": p.ToolResult.ToolUseID,
				"content":     p.ToolResult.Content,
			}
			if p.ToolResult.IsError {
				block["is_error"] = true
			}
			blocks = append(blocks, block)
		}
	}
	// The API rejects empty content; substitute a single space.
	if len(blocks) == 0 {
		blocks = append(blocks, map[string]any{"type": "text", "text": " "})
	}
	return blocks
}

func buildTools(tools []llm.ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		schema := json.RawMessage(`{"type":"object"}`)
		if len(t.InputSchema) > 0 {
			schema = t.InputSchema
		}
		out = append(out, map[string]any{
			"name":         t.Name,
			"description":  t.Description,
			"input_schema": schema,
		})
	}
	return out
}
