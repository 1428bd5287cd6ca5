package openai

import (
	"time"

	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/streams"
)

// Options configures a dialect pipeline. Every field is optional; the zero
// value yields a bare transformer with no callbacks, no provider-specific
// error classification, and no token-speed instrumentation.
type Options struct {
	// Provider names the upstream vendor, used for error classification.
	Provider string

	// BizErrorTypeTransformer classifies in-band first-chunk errors more
	// specifically than the provider default.
	BizErrorTypeTransformer protocol.BizErrorTypeTransformer

	// Callbacks receive lifecycle and content notifications.
	Callbacks streams.Callbacks

	// InputStartAt is the instant the upstream request was sent. Setting it
	// enables the token-speed stage.
	InputStartAt time.Time

	// Logger receives transformer fault and callback panic diagnostics.
	Logger *zap.Logger
}

// ChatStream assembles the full pipeline for a chat-completions dialect
// source: first-error interception, the chat transformer, token speed, and
// callback dispatch.
func ChatStream(src streams.ChunkSource, opts Options) *streams.Pipeline {
	return assemble(src, ChatTransformer{Provider: opts.Provider}.Transform, opts)
}

// ResponsesStream assembles the full pipeline for a Responses dialect
// source.
func ResponsesStream(src streams.ChunkSource, opts Options) *streams.Pipeline {
	return assemble(src, ResponsesTransformer{Provider: opts.Provider}.Transform, opts)
}

func assemble(src streams.ChunkSource, fn streams.TransformFunc, opts Options) *streams.Pipeline {
	sc := protocol.NewStreamContext()
	intercepted := streams.NewFirstErrorSource(src, opts.Provider, opts.BizErrorTypeTransformer)

	var stream streams.EventStream = streams.NewTransformStream(intercepted, fn, sc, opts.Logger)
	if !opts.InputStartAt.IsZero() {
		stream = streams.NewTokenSpeedStream(stream, opts.InputStartAt, nil)
	}
	stream = streams.NewCallbacksStream(stream, opts.Callbacks, opts.Logger)
	return streams.NewPipeline(stream, sc)
}
