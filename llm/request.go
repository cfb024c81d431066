package llm

// RequestConfig carries the resolved dispatch parameters for one call.
// It is assembled by the resolvers at call time and never persisted.
type RequestConfig struct {
	Model   string
	APIKey  string
	APIBase string
}

// ChatOptions are the caller-supplied generation knobs.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   *int
	Stop        []string

	Tools      []ToolDefinition
	ToolChoice ToolChoice
}

// ChatRequest is one chat dispatch: resolved config, conversation, options.
type ChatRequest struct {
	Config   RequestConfig
	Messages []Message
	Options  ChatOptions
}

func (r ChatRequest) Clone() ChatRequest {
	out := r
	out.Messages = make([]Message, len(r.Messages))
	for i := range r.Messages {
		out.Messages[i] = r.Messages[i].Clone()
	}
	if r.Options.Stop != nil {
		out.Options.Stop = append([]string(nil), r.Options.Stop...)
	}
	if r.Options.Tools != nil {
		out.Options.Tools = append([]ToolDefinition(nil), r.Options.Tools...)
	}
	return out
}

// Validate checks structural invariants and, when the adapter ships
// metadata for the requested model, gates the request on that model's
// capabilities.
func (r ChatRequest) Validate(meta ProviderMetadata) error {
	if r.Config.Model == "" {
		return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "model is required"}
	}
	if len(r.Messages) == 0 {
		return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "messages are required"}
	}
	if meta.RequiresAPIKey && r.Config.APIKey == "" {
		return &LLMError{Provider: meta.ID, Kind: ErrKindAuth, Message: "api key is required"}
	}
	if err := ValidateMessages(r.Messages); err != nil {
		return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: err.Error(), Cause: err}
	}

	switch r.Options.ToolChoice {
	case "", ToolChoiceAuto, ToolChoiceNone, ToolChoiceRequired:
	default:
		return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "unknown tool_choice " + string(r.Options.ToolChoice)}
	}
	if r.Options.ToolChoice == ToolChoiceRequired && len(r.Options.Tools) == 0 {
		return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "tool_choice required without tools"}
	}

	// Capability gating only applies to models we have metadata for;
	// user-configured model ids pass through.
	if mi, ok := meta.Model(r.Config.Model); ok {
		if !mi.Capabilities.Streaming {
			return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "model " + mi.ID + " does not support streaming"}
		}
		if len(r.Options.Tools) > 0 && !mi.Capabilities.ToolCalling {
			return &LLMError{Provider: meta.ID, Kind: ErrKindBadRequest, Message: "model " + mi.ID + " does not support tool calling"}
		}
	}
	return nil
}
