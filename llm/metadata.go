package llm

// ModelCapabilities gates request validation before dispatch.
type ModelCapabilities struct {
	ImageInput  bool `json:"image_input"`
	ToolCalling bool `json:"tool_calling"`
	Streaming   bool `json:"streaming"`
}

func FullCapabilities() ModelCapabilities {
	return ModelCapabilities{ImageInput: true, ToolCalling: true, Streaming: true}
}

// ModelInfo describes one model an adapter ships out of the box.
type ModelInfo struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	ContextLength int               `json:"context_length"`
	Capabilities  ModelCapabilities `json:"capabilities"`
}

// ProviderMetadata is the immutable description of one adapter, compiled
// at startup.
type ProviderMetadata struct {
	ID             string      `json:"id"`
	DisplayName    string      `json:"display_name"`
	DefaultAPIBase string      `json:"default_api_base"`
	RequiresAPIKey bool        `json:"requires_api_key"`
	DefaultModels  []ModelInfo `json:"default_models"`
}

// Model looks up a default model by id. The second return is false for
// models the adapter does not ship metadata for.
func (m ProviderMetadata) Model(id string) (ModelInfo, bool) {
	for _, mi := range m.DefaultModels {
		if mi.ID == id {
			return mi, true
		}
	}
	return ModelInfo{}, false
}
