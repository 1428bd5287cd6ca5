package streams

import (
	"context"
	"encoding/json"

	"github.com/unistreamhq/unistream/pkg/protocol"
)

// FirstErrorSource inspects only the first chunk of the wrapped source. If
// that chunk carries the synthesized error sentinel, the interceptor
// classifies the failure and tags the chunk with an error type so the dialect
// transformer downstream can emit a protocol error event. Every later chunk
// passes through untouched; mid-stream errors are the transformer's problem.
type FirstErrorSource struct {
	src         ChunkSource
	provider    string
	transformer protocol.BizErrorTypeTransformer
	inspected   bool
}

// NewFirstErrorSource wraps src. provider names the upstream vendor and is
// used to derive a fallback error type when transformer is nil or abstains.
func NewFirstErrorSource(src ChunkSource, provider string, transformer protocol.BizErrorTypeTransformer) *FirstErrorSource {
	return &FirstErrorSource{src: src, provider: provider, transformer: transformer}
}

func (s *FirstErrorSource) Next(ctx context.Context) (json.RawMessage, error) {
	chunk, err := s.src.Next(ctx)
	if err != nil {
		return nil, err
	}
	if s.inspected {
		return chunk, nil
	}
	s.inspected = true

	var payload map[string]any
	if err := json.Unmarshal(chunk, &payload); err != nil {
		return chunk, nil
	}
	if truthy, ok := payload[protocol.FirstChunkErrorKey].(bool); !ok || !truthy {
		return chunk, nil
	}
	if _, tagged := payload[protocol.ErrorTypeKey]; !tagged {
		payload[protocol.ErrorTypeKey] = s.classify(payload)
	}

	tagged, err := json.Marshal(payload)
	if err != nil {
		return chunk, nil
	}
	return tagged, nil
}

// classify maps the error payload to a protocol error type. The caller's
// transformer gets first refusal; otherwise the provider name yields a
// "<provider>BizError" tag, and an unnamed provider falls back to the
// generic business error type.
func (s *FirstErrorSource) classify(payload map[string]any) string {
	message := errorField(payload, "message")
	name := errorField(payload, "name")

	if s.transformer != nil {
		if errType := s.transformer(message, name); errType != "" {
			return errType
		}
	}
	if s.provider != "" {
		return s.provider + "BizError"
	}
	return protocol.ErrorTypeProviderBizError
}

func errorField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
