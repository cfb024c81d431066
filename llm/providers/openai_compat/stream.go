package openai_compat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/internal/sse"
)

// stream normalizes the vendor's flat delta stream into the canonical
// chunk vocabulary. Text deltas pass through immediately; tool-argument
// fragments are re-emitted as ToolCallDelta chunks keyed by call id and
// finalized as ToolCallComplete once the vendor signals the end of the
// call list.
type stream struct {
	ctx      context.Context
	provider string
	resp     *http.Response
	dec      *sse.Decoder

	closed    bool
	done      bool
	finalized bool

	pending []llm.StreamChunk

	calls map[int]*callState
	order []int
}

type callState struct {
	id        string
	name      string
	args      []byte
	emitted   int
	announced bool
}

func newStream(ctx context.Context, provider string, resp *http.Response) *stream {
	return &stream{
		ctx:      ctx,
		provider: provider,
		resp:     resp,
		dec:      sse.NewDecoder(resp.Body),
		calls:    make(map[int]*callState),
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

	// Cooperative cancellation between chunks: abort the transport and
	// stop emitting.
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

	// Flat delta streams never name their events.
	_, data, err := s.dec.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Some vendors close the connection without sending [DONE].
			return s.finish()
		}
		if s.ctx.Err() != nil {
			s.Close()
			return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindCanceled, Message: "stream canceled", Cause: s.ctx.Err()}
		}
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindTransport, Message: "stream read failed", Cause: err}
	}

	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("[DONE]")) {
		return s.finish()
	}

	var chunk chatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindParse, Message: "failed to decode stream chunk", Raw: append([]byte(nil), data...), Cause: err}
	}
	if chunk.Error != nil {
		return llm.StreamChunk{}, &llm.LLMError{Provider: s.provider, Kind: llm.ErrKindServer, Message: chunk.Error.Message, Raw: append([]byte(nil), data...)}
	}

	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, llm.TextChunk(choice.Delta.Content))
		}
		for _, tc := range choice.Delta.ToolCalls {
			cs := s.call(tc.Index)
			if tc.ID != "" {
				cs.id = tc.ID
			}
			if tc.Function.Name != "" {
				cs.name = tc.Function.Name
			}
			cs.args = append(cs.args, tc.Function.Arguments...)
			// Fragments are held back until the vendor names the call, so
			// every emitted delta carries the same id the completion will.
			if cs.id == "" {
				continue
			}
			fragment := string(cs.args[cs.emitted:])
			if cs.announced && fragment == "" {
				continue
			}
			var name string
			if !cs.announced {
				name = cs.name
				cs.announced = true
			}
			cs.emitted = len(cs.args)
			s.pending = append(s.pending, llm.ToolCallDeltaChunk(cs.id, name, fragment))
		}
		if choice.FinishReason != "" && len(s.order) > 0 && !s.finalized {
			if err := s.finalizeCalls(); err != nil {
				return llm.StreamChunk{}, err
			}
		}
	}

	if len(s.pending) == 0 {
		// Nothing meaningful in this chunk; read the next one.
		return s.Recv()
	}
	return s.pop(), nil
}

func (s *stream) pop() llm.StreamChunk {
	ev := s.pending[0]
	s.pending = s.pending[1:]
	return ev
}

func (s *stream) call(index int) *callState {
	cs, ok := s.calls[index]
	if !ok {
		cs = &callState{}
		s.calls[index] = cs
		s.order = append(s.order, index)
	}
	return cs
}

// finish drains remaining state at end of stream.
func (s *stream) finish() (llm.StreamChunk, error) {
	s.done = true
	if !s.finalized && len(s.order) > 0 {
		if err := s.finalizeCalls(); err != nil {
			return llm.StreamChunk{}, err
		}
	}
	if len(s.pending) > 0 {
		return s.pop(), nil
	}
	return llm.StreamChunk{}, io.EOF
}

// finalizeCalls parses each accumulated argument buffer exactly once. This
// is the authoritative point where fragments become structured data; a
// parse failure here is a provider error, never silently dropped.
func (s *stream) finalizeCalls() error {
	s.finalized = true
	for _, idx := range s.order {
		cs := s.calls[idx]
		if cs.id == "" {
			// The vendor never named this call; no delta was emitted for it.
			cs.id = fmt.Sprintf("call_%d", idx)
		}
		input := json.RawMessage(nil)
		if len(cs.args) > 0 {
			if !json.Valid(cs.args) {
				return &llm.LLMError{
					Provider: s.provider,
					Kind:     llm.ErrKindParse,
					Message:  "tool call " + cs.id + ": accumulated arguments are not valid JSON",
					Raw:      append([]byte(nil), cs.args...),
				}
			}
			input = append(json.RawMessage(nil), cs.args...)
		}
		s.pending = append(s.pending, llm.ToolCallCompleteChunk(llm.ToolCall{ID: cs.id, Name: cs.name, Input: input}))
	}
	return nil
}
