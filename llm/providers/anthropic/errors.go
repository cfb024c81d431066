package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openllm/openllm-go/llm"
	"github.com/openllm/openllm-go/llm/internal/transport"
)

func (p *Provider) mapError(err error, raw []byte) error {
	if errors.Is(err, context.Canceled) {
		return &llm.LLMError{Provider: p.meta.ID, Kind: llm.ErrKindCanceled, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.LLMError{Provider: p.meta.ID, Kind: llm.ErrKindTimeout, Message: "request deadline exceeded", Retryable: true, Cause: err}
	}

	var se *transport.HTTPStatusError
	if errors.As(err, &se) {
		kind, retryable := classifyHTTP(se.StatusCode)
		msg, code := parseErrorEnvelope(se.Body)
		if msg == "" {
			msg = http.StatusText(se.StatusCode)
		}
		return &llm.LLMError{
			Provider:     p.meta.ID,
			Kind:         kind,
			HTTPStatus:   se.StatusCode,
			ProviderCode: code,
			Message:      msg,
			Retryable:    retryable,
			Raw:          append([]byte(nil), se.Body...),
			Cause:        err,
		}
	}

	return &llm.LLMError{Provider: p.meta.ID, Kind: llm.ErrKindTransport, Message: err.Error(), Retryable: true, Raw: raw, Cause: err}
}

func classifyHTTP(status int) (llm.ErrorKind, bool) {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.ErrKindAuth, false
	case http.StatusTooManyRequests:
		return llm.ErrKindRateLimit, true
	case http.StatusBadRequest:
		return llm.ErrKindBadRequest, false
	case http.StatusNotFound:
		return llm.ErrKindNotFound, false
	default:
		if status >= 500 {
			return llm.ErrKindServer, true
		}
		return llm.ErrKindTransport, false
	}
}

func parseErrorEnvelope(raw []byte) (message string, code string) {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == nil {
		return "", ""
	}
	return env.Error.Message, env.Error.Type
}
