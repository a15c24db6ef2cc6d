package catalog

// Model is one entry of the OpenRouter model catalog.
type Model struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Pricing          Pricing           `json:"pricing"`
	ContextLength    *int64            `json:"context_length"`
	Architecture     Architecture      `json:"architecture"`
	TopProvider      TopProvider       `json:"top_provider"`
	PerRequestLimits *PerRequestLimits `json:"per_request_limits"`
}

// Pricing values are decimal strings in USD per token, as OpenRouter sends them.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
	Image      string `json:"image,omitempty"`
	Request    string `json:"request,omitempty"`
}

type Architecture struct {
	Modality     string  `json:"modality"`
	Tokenizer    string  `json:"tokenizer"`
	InstructType *string `json:"instruct_type"`
}

type TopProvider struct {
	ContextLength       *int64 `json:"context_length"`
	MaxCompletionTokens *int64 `json:"max_completion_tokens"`
	IsModerated         bool   `json:"is_moderated"`
}

// PerRequestLimits fields are numbers or numeric strings depending on the model.
type PerRequestLimits struct {
	PromptTokens     any `json:"prompt_tokens"`
	CompletionTokens any `json:"completion_tokens"`
}

// ContextWindow returns the model's context length, falling back to the top
// provider's, or 0 when neither is known.
func (m Model) ContextWindow() int64 {
	if m.ContextLength != nil {
		return *m.ContextLength
	}
	if m.TopProvider.ContextLength != nil {
		return *m.TopProvider.ContextLength
	}
	return 0
}
