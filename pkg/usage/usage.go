// Package usage normalizes vendor token accounting into one model. Vendors
// disagree about field names, about whether reasoning and audio tokens are
// folded into the completion count, and about how cache hits are reported;
// everything downstream works off the normalized Usage struct instead.
package usage

// PromptTokensDetails is the OpenAI chat-completions prompt breakdown.
type PromptTokensDetails struct {
	AudioTokens  int `json:"audio_tokens"`
	CachedTokens int `json:"cached_tokens"`
}

// CompletionTokensDetails is the OpenAI chat-completions output breakdown.
type CompletionTokensDetails struct {
	AcceptedPredictionTokens int `json:"accepted_prediction_tokens"`
	AudioTokens              int `json:"audio_tokens"`
	ImageTokens              int `json:"image_tokens"`
	ReasoningTokens          int `json:"reasoning_tokens"`
	RejectedPredictionTokens int `json:"rejected_prediction_tokens"`
}

// CompletionUsage is the chat-completions dialect usage object as it appears
// on the wire, including the DeepSeek cache extension fields.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`

	PromptCacheHitTokens  int `json:"prompt_cache_hit_tokens,omitempty"`
	PromptCacheMissTokens int `json:"prompt_cache_miss_tokens,omitempty"`
}

// ResponsesUsage is the Responses dialect usage object as it appears on the
// wire.
type ResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`

	InputTokensDetails *struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"input_tokens_details,omitempty"`

	OutputTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"output_tokens_details,omitempty"`
}

// Usage is the normalized accounting model carried by usage events. Zero
// fields are omitted on the wire.
type Usage struct {
	AcceptedPredictionTokens int `json:"acceptedPredictionTokens,omitempty"`
	InputAudioTokens         int `json:"inputAudioTokens,omitempty"`
	InputCacheMissTokens     int `json:"inputCacheMissTokens,omitempty"`
	InputCachedTokens        int `json:"inputCachedTokens,omitempty"`
	InputTextTokens          int `json:"inputTextTokens,omitempty"`
	OutputAudioTokens        int `json:"outputAudioTokens,omitempty"`
	OutputImageTokens        int `json:"outputImageTokens,omitempty"`
	OutputReasoningTokens    int `json:"outputReasoningTokens,omitempty"`
	OutputTextTokens         int `json:"outputTextTokens,omitempty"`
	RejectedPredictionTokens int `json:"rejectedPredictionTokens,omitempty"`
	TotalInputTokens         int `json:"totalInputTokens,omitempty"`
	TotalOutputTokens        int `json:"totalOutputTokens,omitempty"`
	TotalTokens              int `json:"totalTokens,omitempty"`
}

// Convert normalizes a chat-completions usage object. The invariants are:
// totalInputTokens and totalOutputTokens keep the vendor's raw counts, the
// text-token fields are the remainder after carving out the modality-specific
// details, and cache hits always surface as inputCachedTokens regardless of
// which vendor extension reported them. The provider name is the hook for
// vendor-specific accounting quirks; no vendor currently needs one beyond
// the cache-field aliases handled below.
func Convert(u CompletionUsage, provider string) Usage {
	out := Usage{
		TotalInputTokens:  u.PromptTokens,
		TotalOutputTokens: u.CompletionTokens,
		TotalTokens:       u.TotalTokens,
	}
	if out.TotalTokens == 0 {
		out.TotalTokens = u.PromptTokens + u.CompletionTokens
	}

	if d := u.PromptTokensDetails; d != nil {
		out.InputAudioTokens = d.AudioTokens
		out.InputCachedTokens = d.CachedTokens
	}
	if out.InputCachedTokens == 0 && u.PromptCacheHitTokens > 0 {
		out.InputCachedTokens = u.PromptCacheHitTokens
	}
	if out.InputCachedTokens > 0 {
		if u.PromptCacheMissTokens > 0 {
			out.InputCacheMissTokens = u.PromptCacheMissTokens
		} else {
			out.InputCacheMissTokens = u.PromptTokens - out.InputCachedTokens
		}
	}
	out.InputTextTokens = u.PromptTokens - out.InputAudioTokens

	if d := u.CompletionTokensDetails; d != nil {
		out.AcceptedPredictionTokens = d.AcceptedPredictionTokens
		out.RejectedPredictionTokens = d.RejectedPredictionTokens
		out.OutputAudioTokens = d.AudioTokens
		out.OutputImageTokens = d.ImageTokens
		out.OutputReasoningTokens = d.ReasoningTokens
	}
	out.OutputTextTokens = u.CompletionTokens - out.OutputAudioTokens - out.OutputReasoningTokens - out.OutputImageTokens

	return out
}

// ConvertResponses normalizes a Responses dialect usage object.
func ConvertResponses(u ResponsesUsage) Usage {
	out := Usage{
		TotalInputTokens:  u.InputTokens,
		TotalOutputTokens: u.OutputTokens,
		TotalTokens:       u.TotalTokens,
	}
	if out.TotalTokens == 0 {
		out.TotalTokens = u.InputTokens + u.OutputTokens
	}

	if d := u.InputTokensDetails; d != nil {
		out.InputCachedTokens = d.CachedTokens
		if d.CachedTokens > 0 {
			out.InputCacheMissTokens = u.InputTokens - d.CachedTokens
		}
	}
	out.InputTextTokens = u.InputTokens

	if d := u.OutputTokensDetails; d != nil {
		out.OutputReasoningTokens = d.ReasoningTokens
	}
	out.OutputTextTokens = u.OutputTokens - out.OutputReasoningTokens

	return out
}
