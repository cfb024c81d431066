package openai_compat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openllm/openllm-go/llm"
)

func testMetadata() llm.ProviderMetadata {
	return llm.ProviderMetadata{
		ID:             "fakeai",
		DisplayName:    "FakeAI",
		DefaultAPIBase: "https://example.invalid",
		RequiresAPIKey: true,
	}
}

func sseServer(t *testing.T, events []string, capture *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			body, _ := io.ReadAll(r.Body)
			*capture = body
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			_, _ = w.Write([]byte("data: " + ev + "\n\n"))
		}
	}))
}

func drain(t *testing.T, s llm.Stream) []llm.StreamChunk {
	t.Helper()
	defer s.Close()
	var out []llm.StreamChunk
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, chunk)
	}
}

func TestStreamChatTextDeltas(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"lo"}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("hi")},
	})
	require.NoError(t, err)

	chunks := drain(t, stream)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Hel", chunks[0].Text)
	assert.Equal(t, "lo", chunks[1].Text)
}

func TestStreamChatToolCallAccumulation(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":""}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"Oslo\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("weather in oslo")},
		Options: llm.ChatOptions{Tools: []llm.ToolDefinition{{Name: "get_weather"}}},
	})
	require.NoError(t, err)

	chunks := drain(t, stream)

	var deltas, completes int
	var final *llm.ToolCall
	for _, c := range chunks {
		switch c.Kind {
		case llm.ChunkToolCallDelta:
			deltas++
			assert.Equal(t, "call_abc", c.ToolCallDelta.ID)
		case llm.ChunkToolCallComplete:
			completes++
			final = c.ToolCall
		}
	}
	assert.Equal(t, 3, deltas)
	require.Equal(t, 1, completes)
	assert.Equal(t, "call_abc", final.ID)
	assert.Equal(t, "get_weather", final.Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(final.Input))
}

func TestStreamChatLateToolCallIDKeysAllDeltas(t *testing.T) {
	// Some vendors stream the first argument fragment before naming the
	// call; every surfaced delta must still carry the vendor id.
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"name":"get_weather","arguments":"{\"city\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_late","function":{"arguments":"\"Oslo\"}"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	}, nil)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("weather in oslo")},
		Options:  llm.ChatOptions{Tools: []llm.ToolDefinition{{Name: "get_weather"}}},
	})
	require.NoError(t, err)

	chunks := drain(t, stream)

	var fragments string
	var final *llm.ToolCall
	for _, c := range chunks {
		switch c.Kind {
		case llm.ChunkToolCallDelta:
			assert.Equal(t, "call_late", c.ToolCallDelta.ID)
			fragments += c.ToolCallDelta.InputFragment
		case llm.ChunkToolCallComplete:
			final = c.ToolCall
		}
	}
	require.NotNil(t, final)
	assert.Equal(t, "call_late", final.ID)
	assert.Equal(t, "get_weather", final.Name)
	assert.JSONEq(t, `{"city":"Oslo"}`, string(final.Input))
	assert.Equal(t, string(final.Input), fragments)
}

func TestStreamChatMalformedToolArgumentsIsParseError(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"f","arguments":"{\"x\":"}}]}}]}`,
		`{"choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
	}, nil)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("hi")},
	})
	require.NoError(t, err)
	defer stream.Close()

	var lastErr error
	for {
		_, err := stream.Recv()
		if err != nil {
			lastErr = err
			break
		}
	}
	le, ok := llm.AsLLMError(lastErr)
	require.True(t, ok, "got %v", lastErr)
	assert.Equal(t, llm.ErrKindParse, le.Kind)
	assert.Equal(t, "fakeai", le.Provider)
}

func TestStreamChatFinalizesWithoutDoneMarker(t *testing.T) {
	// Some vendors close the connection without [DONE].
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"f","arguments":"{}"}}]}}]}`,
	}, nil)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("hi")},
	})
	require.NoError(t, err)

	chunks := drain(t, stream)
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, llm.ChunkToolCallComplete, last.Kind)
}

func TestStreamChatCancellationStopsEmitting(t *testing.T) {
	srv := sseServer(t, []string{
		`{"choices":[{"index":0,"delta":{"content":"a"}}]}`,
		`{"choices":[{"index":0,"delta":{"content":"b"}}]}`,
	}, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p, err := New(testMetadata())
	require.NoError(t, err)

	stream, err := p.StreamChat(ctx, llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("hi")},
	})
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Recv()
	require.NoError(t, err)

	cancel()
	_, err = stream.Recv()
	le, ok := llm.AsLLMError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrKindCanceled, le.Kind)
}

func TestStreamChatErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	_, err = p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-bad", APIBase: srv.URL},
		Messages: []llm.Message{llm.User("hi")},
	})
	le, ok := llm.AsLLMError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrKindAuth, le.Kind)
	assert.Equal(t, http.StatusUnauthorized, le.HTTPStatus)
	assert.Equal(t, "bad key", le.Message)
	assert.Equal(t, "invalid_api_key", le.ProviderCode)
}

func TestRequestSerializationToolResults(t *testing.T) {
	var captured []byte
	srv := sseServer(t, []string{`[DONE]`}, &captured)
	defer srv.Close()

	p, err := New(testMetadata())
	require.NoError(t, err)

	msgs := []llm.Message{
		llm.User("weather?"),
		{Role: llm.RoleAssistant, Parts: []llm.ContentPart{
			llm.ToolUsePart("t1", "get_weather", []byte(`{"city":"Oslo"}`)),
		}},
		{Role: llm.RoleUser, Parts: []llm.ContentPart{
			llm.ToolResultPart("t1", "snow", false),
		}},
	}
	stream, err := p.StreamChat(context.Background(), llm.ChatRequest{
		Config:   llm.RequestConfig{Model: "m", APIKey: "sk-x", APIBase: srv.URL},
		Messages: msgs,
	})
	require.NoError(t, err)
	drain(t, stream)

	var wire struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(captured, &wire))
	require.Len(t, wire.Messages, 3)

	assert.Equal(t, "user", wire.Messages[0]["role"])

	asst := wire.Messages[1]
	assert.Equal(t, "assistant", asst["role"])
	require.Contains(t, asst, "tool_calls")

	tool := wire.Messages[2]
	assert.Equal(t, "tool", tool["role"])
	assert.Equal(t, "t1", tool["tool_call_id"])
	assert.Equal(t, "snow", tool["content"])
}
