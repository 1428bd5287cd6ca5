package streams

import (
	"context"
	"io"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/sse"
)

// EncodeOptions controls the SSE encode sink.
type EncodeOptions struct {
	// RequireTerminalEvent makes the sink append a synthesized error event
	// when the stream ends without a stop or error event, so downstream
	// consumers can distinguish a finished response from a severed one.
	RequireTerminalEvent bool
}

// EncodeSSE drains a stream, writing each event to w in the protocol's SSE
// wire form. It returns the first transport or write error; in-band error
// events are data, not errors. If the stream implements io.Closer it is
// closed before EncodeSSE returns.
func EncodeSSE(ctx context.Context, s EventStream, w io.Writer, opts *EncodeOptions) error {
	if c, ok := s.(io.Closer); ok {
		defer c.Close()
	}
	if opts == nil {
		opts = &EncodeOptions{}
	}

	sw := sse.NewWriter(w)
	var lastID string
	terminal := false
	for {
		events, err := s.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.ID != "" {
				lastID = ev.ID
			}
			if ev.Terminal() {
				terminal = true
			}
			if werr := sw.WriteEvent(ev); werr != nil {
				return werr
			}
		}
	}

	if opts.RequireTerminalEvent && !terminal {
		return sw.WriteEvent(protocol.Event{
			Type: protocol.EventError,
			ID:   lastID,
			Data: protocol.NewUnexpectedEndError(),
		})
	}
	return nil
}
