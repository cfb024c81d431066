package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/internal/sse"
)

// stream normalizes the block-structured event sequence. Text deltas pass
// through immediately. A tool_use block accumulates input_json_delta
// fragments under its block index; content_block_stop is the authoritative
// trigger for parsing the accumulated JSON and emitting ToolCallComplete.
type stream struct {
	ctx      context.Context
	provider string
	resp     *http.Response
	dec      *sse.Decoder

	closed bool
	done   bool

	pending []llm.StreamChunk
	blocks  map[int]*toolBlock
}

type toolBlock struct {
	id   string
	name string
	args []byte
}

func newStream(ctx context.Context, provider string, resp *http.Response) *stream {
	return &stream{
		ctx:      ctx,
		provider: provider,
		resp:     resp,
		dec:      sse.NewDecoder(resp.Body),
		blocks:   make(map[int]*toolBlock),
	}
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}

func (s *stream) Recv() (llm.StreamChunk, error) {
	if s.closed {
		return llm.StreamChunk{}, llm.ErrStreamClosed
	}

	select {
	case <-s.ctx.Done():
		s.Close()
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindCanceled, Message: "stream canceled", Cause: s.ctx.Err()}
	default:
	}

	if len(s.pending) > 0 {
		return s.pop(), nil
	}
	if s.done {
		return llm.StreamChunk{}, io.EOF
	}

	name, data, err := s.dec.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.done = true
			return llm.StreamChunk{}, io.EOF
		}
		if s.ctx.Err() != nil {
			s.Close()
			return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindCanceled, Message: "stream canceled", Cause: s.ctx.Err()}
		}
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindTransport, Message: "stream read failed", Cause: err}
	}

	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindParse, Message: "failed to decode stream event", Raw: append([]byte(nil), data...), Cause: err}
	}
	if name == "" {
		name = ev.Type
	}

	switch name {
	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			tb := &toolBlock{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			s.blocks[ev.Index] = tb
			s.pending = append(s.pending, llm.ToolCallDeltaChunk(tb.id, tb.name, ""))
		}

	case "content_block_delta":
		if ev.Delta == nil {
			break
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text != "" {
				s.pending = append(s.pending, llm.TextChunk(ev.Delta.Text))
			}
		case "input_json_delta":
			if tb, ok := s.blocks[ev.Index]; ok && ev.Delta.PartialJSON != "" {
				tb.args = append(tb.args, ev.Delta.PartialJSON...)
				s.pending = append(s.pending, llm.ToolCallDeltaChunk(tb.id, "", ev.Delta.PartialJSON))
			}
		}

	case "content_block_stop":
		tb, ok := s.blocks[ev.Index]
		if !ok {
			break
		}
		delete(s.blocks, ev.Index)
		call, err := finalizeBlock(s.provider, tb)
		if err != nil {
			return llm.StreamChunk{}, err
		}
		s.pending = append(s.pending, llm.ToolCallCompleteChunk(call))

	case "message_stop":
		s.done = true

	case "error":
		msg := "provider reported error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindServer, Message: msg, Raw: append([]byte(nil), data...)}
	}
	// message_start, message_delta and ping carry nothing we emit.

	if len(s.pending) == 0 {
		if s.done {
			return llm.StreamChunk{}, io.EOF
		}
		return s.Recv()
	}
	return s.pop(), nil
}

func (s *stream) pop() llm.StreamChunk {
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev
}

// finalizeBlock parses the accumulated fragments exactly once. An
// unparseable payload is a provider error, never silently dropped.
func finalizeBlock(provider string, tb *toolBlock) (llm.ToolCall, error) {
	input := json.RawMessage(`{}`)
	if len(tb.args) > 0 {
		if !json.Valid(tb.args) {
			return llm.ToolCall{}, &llm.LLMError{
				Provider: provider,
				Kind:     llm.ErrKindParse,
				Message:  "tool call " + tb.id + ": accumulated input is not valid JSON",
				Raw:      append([]byte(nil), tb.args...),
			}
		}
		input = append(json.RawMessage(nil), tb.args...)
	}
	return llm.ToolCall{ID: tb.id, Name: tb.name, Input: input}, nil
}
