package anthropic

import "encoding/json"

// Wire DTOs for the Messages streaming events.

type streamEvent struct {
	Type string `json:"type"`

	Index        int           `json:"index"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        *blockDelta   `json:"delta"`
	Error        *apiError     `json:"error"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type blockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	PartialJSON string `json:"partial_json"`
	StopReason  string `json:"stop_reason"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Type  string    `json:"type"`
	Error *apiError `json:"error"`
}
