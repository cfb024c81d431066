package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentPartType string

const (
	ContentPartText       ContentPartType = "text"
	ContentPartToolUse    ContentPartType = "tool_use"
	ContentPartToolResult ContentPartType = "tool_result"
)

// ToolUse is an assistant-issued call of a declared tool. Input is the
// complete, parsed argument object.
type ToolUse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult carries the outcome of a ToolUse back into the conversation.
// ToolUseID must reference a ToolUse emitted earlier in the same
// conversation.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ContentPart is one segment of a message's content. Exactly one of the
// payload fields is set, matching Type.
type ContentPart struct {
	Type ContentPartType `json:"type"`

	Text       string      `json:"text,omitempty"`
	ToolUse    *ToolUse    `json:"tool_use,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

func ToolUsePart(id, name string, input json.RawMessage) ContentPart {
	return ContentPart{Type: ContentPartToolUse, ToolUse: &ToolUse{ID: id, Name: name, Input: append(json.RawMessage(nil), input...)}}
}

func ToolResultPart(toolUseID, content string, isError bool) ContentPart {
	return ContentPart{Type: ContentPartToolResult, ToolResult: &ToolResult{ToolUseID: toolUseID, Content: content, IsError: isError}}
}

// Message is a canonical chat message: a role plus an ordered sequence of
// content parts.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

func System(text string) Message {
	return Message{Role: RoleSystem, Parts: []ContentPart{TextPart(text)}}
}

func User(text string) Message {
	return Message{Role: RoleUser, Parts: []ContentPart{TextPart(text)}}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Parts: []ContentPart{TextPart(text)}}
}

// Text concatenates the text parts, skipping structured parts.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == ContentPartText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]ContentPart, len(m.Parts))
		copy(out.Parts, m.Parts)
		for i, p := range out.Parts {
			if p.ToolUse != nil {
				tu := *p.ToolUse
				tu.Input = append(json.RawMessage(nil), tu.Input...)
				out.Parts[i].ToolUse = &tu
			}
			if p.ToolResult != nil {
				tr := *p.ToolResult
				out.Parts[i].ToolResult = &tr
			}
		}
	}
	return out
}

// ValidateMessages enforces conversation-level invariants: known roles,
// and every tool result referencing a tool use seen earlier.
func ValidateMessages(msgs []Message) error {
	seen := make(map[string]bool)
	for i, m := range msgs {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("llm: message %d has unknown role %q", i, m.Role)
		}
		for _, p := range m.Parts {
			switch p.Type {
			case ContentPartToolUse:
				if p.ToolUse == nil || p.ToolUse.ID == "" {
					return fmt.Errorf("llm: message %d has tool_use part without id", i)
				}
				seen[p.ToolUse.ID] = true
			case ContentPartToolResult:
				if p.ToolResult == nil {
					return fmt.Errorf("llm: message %d has empty tool_result part", i)
				}
				if !seen[p.ToolResult.ToolUseID] {
					return fmt.Errorf("llm: message %d references unknown tool_use id %q", i, p.ToolResult.ToolUseID)
				}
			}
		}
	}
	return nil
}

// ToolDefinition declares a callable tool offered to the model.
// InputSchema is a JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ToolCall is a finalized tool invocation, produced once a vendor stream
// has delivered the complete argument payload.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}
