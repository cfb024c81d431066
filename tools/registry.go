// Package tools keeps the tool registry: internal bookkeeping tools
// under the reserved openllm_ prefix, embedder-registered tools, and
// proxies for tools a host endpoint exposes over the bridge.
//
// Internal tools are host-facing plumbing. They never appear in the set
// handed to a language model, regardless of listing flags.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openllm/openllm-go/llm"
)

// InternalPrefix is reserved: only the registry itself may register
// tools named under it.
const InternalPrefix = "openllm_"

// ToolDescriptor describes one callable tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
	Internal    bool            `json:"internal,omitempty"`
}

// ToolOutput is a tool call's result. IsError marks a tool-level
// failure the caller should surface, as opposed to a dispatch error.
type ToolOutput struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Handler executes one tool call.
type Handler func(ctx context.Context, input json.RawMessage) (ToolOutput, error)

type entry struct {
	desc    ToolDescriptor
	handler Handler
}

// Registry holds tools by name. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds an embedder tool. Names under the reserved prefix and
// duplicate names are rejected.
func (r *Registry) Register(desc ToolDescriptor, handler Handler) error {
	if strings.HasPrefix(desc.Name, InternalPrefix) {
		return fmt.Errorf("tools: name %q uses the reserved prefix %q", desc.Name, InternalPrefix)
	}
	desc.Internal = false
	return r.add(desc, handler)
}

func (r *Registry) add(desc ToolDescriptor, handler Handler) error {
	if desc.Name == "" {
		return fmt.Errorf("tools: tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tools: tool %q has no handler", desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[desc.Name]; dup {
		return fmt.Errorf("tools: tool %q already registered", desc.Name)
	}
	r.entries[desc.Name] = entry{desc: desc, handler: handler}
	return nil
}

// registerInternal bypasses the prefix guard for the registry's own
// bookkeeping tools.
func (r *Registry) registerInternal(desc ToolDescriptor, handler Handler) {
	desc.Internal = true
	if err := r.add(desc, handler); err != nil {
		panic(err)
	}
}

// Unregister removes a tool by name. Internal tools cannot be removed.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil
	}
	if e.desc.Internal {
		return fmt.Errorf("tools: cannot unregister internal tool %q", name)
	}
	delete(r.entries, name)
	return nil
}

// ListTools returns descriptors sorted by name. Internal tools are
// included only on request.
func (r *Registry) ListTools(includeInternal bool) []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.desc.Internal && !includeInternal {
			continue
		}
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LLMTools returns the tool definitions offered to a model. Internal
// tools are excluded unconditionally.
func (r *Registry) LLMTools() []llm.ToolDefinition {
	descs := r.ListTools(false)
	out := make([]llm.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	return out
}

// CallTool dispatches by name. An unknown name is a dispatch error; a
// handler may report a tool-level failure through ToolOutput.IsError
// without returning an error.
func (r *Registry) CallTool(ctx context.Context, name string, input json.RawMessage) (ToolOutput, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return ToolOutput{}, fmt.Errorf("tools: unknown tool %q", name)
	}
	return e.handler(ctx, input)
}
