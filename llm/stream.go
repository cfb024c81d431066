package llm

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Stream yields StreamChunk values until io.EOF.
//
// Implementations return io.EOF once the stream finishes normally. Recv is
// a suspension point: callers block until the next chunk is available, and
// cancellation is observed between chunks.
type Stream interface {
	Recv() (StreamChunk, error)
	Close() error
}

var ErrStreamClosed = errors.New("llm: stream closed")

type ChunkKind string

const (
	ChunkText             ChunkKind = "text"
	ChunkToolCallDelta    ChunkKind = "tool_call_delta"
	ChunkToolCallComplete ChunkKind = "tool_call_complete"
)

// ToolCallDelta is one fragment of a streamed tool call. Fragments sharing
// an ID must be concatenated in order before the payload is parsed; a lone
// fragment is not valid structured data.
type ToolCallDelta struct {
	ID            string
	Name          string
	InputFragment string
}

// StreamChunk is the canonical streaming event. Exactly one payload field
// is set, matching Kind.
type StreamChunk struct {
	Kind ChunkKind

	Text          string
	ToolCallDelta *ToolCallDelta
	ToolCall      *ToolCall
}

func TextChunk(text string) StreamChunk {
	return StreamChunk{Kind: ChunkText, Text: text}
}

func ToolCallDeltaChunk(id, name, fragment string) StreamChunk {
	return StreamChunk{Kind: ChunkToolCallDelta, ToolCallDelta: &ToolCallDelta{ID: id, Name: name, InputFragment: fragment}}
}

func ToolCallCompleteChunk(call ToolCall) StreamChunk {
	return StreamChunk{Kind: ChunkToolCallComplete, ToolCall: &call}
}

// Accumulator builds a final assistant message from a chunk sequence.
//
// Tool-call fragments are concatenated per id in arrival order and parsed
// exactly once, either when the matching completion chunk arrives or when
// Finalize is called.
type Accumulator struct {
	text strings.Builder

	order []string
	calls map[string]*pendingCall
}

type pendingCall struct {
	name      string
	args      []byte
	completed *ToolCall
}

func (a *Accumulator) Apply(chunk StreamChunk) {
	switch chunk.Kind {
	case ChunkText:
		a.text.WriteString(chunk.Text)
	case ChunkToolCallDelta:
		d := chunk.ToolCallDelta
		if d == nil || d.ID == "" {
			return
		}
		pc := a.pending(d.ID)
		if d.Name != "" {
			pc.name = d.Name
		}
		pc.args = append(pc.args, d.InputFragment...)
	case ChunkToolCallComplete:
		if chunk.ToolCall == nil || chunk.ToolCall.ID == "" {
			return
		}
		pc := a.pending(chunk.ToolCall.ID)
		call := *chunk.ToolCall
		call.Input = append(json.RawMessage(nil), call.Input...)
		pc.completed = &call
		if call.Name != "" {
			pc.name = call.Name
		}
	}
}

func (a *Accumulator) pending(id string) *pendingCall {
	if a.calls == nil {
		a.calls = make(map[string]*pendingCall)
	}
	pc, ok := a.calls[id]
	if !ok {
		pc = &pendingCall{}
		a.calls[id] = pc
		a.order = append(a.order, id)
	}
	return pc
}

// Text returns the concatenated text received so far.
func (a *Accumulator) Text() string { return a.text.String() }

// ToolCalls finalizes accumulated fragments, parsing each call's input
// once. A call whose fragments do not concatenate to valid JSON yields a
// parse error naming the call.
func (a *Accumulator) ToolCalls() ([]ToolCall, error) {
	out := make([]ToolCall, 0, len(a.order))
	for _, id := range a.order {
		pc := a.calls[id]
		if pc.completed != nil {
			out = append(out, *pc.completed)
			continue
		}
		call := ToolCall{ID: id, Name: pc.name}
		if len(pc.args) > 0 {
			if !json.Valid(pc.args) {
				return nil, &LLMError{Kind: ErrKindParse, Message: "tool call " + id + ": arguments are not valid JSON", Raw: append([]byte(nil), pc.args...)}
			}
			call.Input = append(json.RawMessage(nil), pc.args...)
		}
		out = append(out, call)
	}
	return out, nil
}

// FinalMessage assembles the assistant message: text first, then tool-use
// parts in call order.
func (a *Accumulator) FinalMessage() (Message, error) {
	msg := Message{Role: RoleAssistant}
	if t := a.text.String(); t != "" {
		msg.Parts = append(msg.Parts, TextPart(t))
	}
	calls, err := a.ToolCalls()
	if err != nil {
		return Message{}, err
	}
	for _, c := range calls {
		msg.Parts = append(msg.Parts, ToolUsePart(c.ID, c.Name, c.Input))
	}
	return msg, nil
}

// DrainStream consumes a stream to completion and returns the assembled
// assistant message.
func DrainStream(stream Stream) (Message, error) {
	defer stream.Close()

	var acc Accumulator
	for {
		chunk, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Message{}, err
		}
		acc.Apply(chunk)
	}
	return acc.FinalMessage()
}
