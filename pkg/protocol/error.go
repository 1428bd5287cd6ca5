package protocol

// FirstChunkErrorKey is the in-band error sentinel: a well-known boolean
// field present only on the first item of a stream when the vendor signals
// an API-level failure through an otherwise-normal-looking stream.
const FirstChunkErrorKey = "_firstChunkError"

// ErrorTypeKey carries the classified error kind on a sentinel-tagged chunk.
const ErrorTypeKey = "errorType"

// FirstChunkErrorID is the fixed event id for first-chunk error events.
const FirstChunkErrorID = "first_chunk_error"

// ErrorTypeProviderBizError is the default classification for in-band
// provider errors when no transformer supplies a more specific kind.
const ErrorTypeProviderBizError = "ProviderBizError"

// StreamChunkErrorName tags per-chunk parse failures.
const StreamChunkErrorName = "StreamChunkError"

// chunkParseErrorMessage is the user-visible message for a malformed chunk.
// The rest of the stream keeps flowing; only the offending chunk surfaces it.
const chunkParseErrorMessage = "chat response streaming chunk parse error, please contact your API Provider to fix it."

// BizErrorTypeTransformer classifies an in-band provider error more
// specifically than the generic default. Returning an empty string keeps
// the default classification.
type BizErrorTypeTransformer func(message, name string) string

// StreamError is the payload of an EventError event.
type StreamError struct {
	Body any    `json:"body"`
	Type string `json:"type"`

	// Message and Name are set only on pipeline-synthesized errors such as
	// the unexpected-end flush error.
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
}

// NewChunkParseError builds the error payload for one malformed chunk,
// preserving the raw chunk and the failure detail for diagnostics.
func NewChunkParseError(err error, chunk any) StreamError {
	detail := map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"name":    StreamChunkErrorName,
		},
		"chunk": chunk,
	}
	return StreamError{
		Body: map[string]any{
			"message": chunkParseErrorMessage,
			"context": detail,
		},
		Type: StreamChunkErrorName,
	}
}

// NewUnexpectedEndError builds the error payload injected when a stream
// ends without a terminal stop or error event.
func NewUnexpectedEndError() StreamError {
	return StreamError{
		Body: map[string]any{
			"name":   "Stream parsing error",
			"reason": "unexpected_end",
		},
		Message: "Stream ended unexpectedly",
		Name:    "Stream parsing error",
		Type:    StreamChunkErrorName,
	}
}
