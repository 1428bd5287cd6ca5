package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/protocol"
)

// EventStream is a pull-based stream of protocol events. Next returns the
// events produced by one upstream chunk, which may be empty, and io.EOF once
// the stream is exhausted.
type EventStream interface {
	Next(ctx context.Context) ([]protocol.Event, error)
}

// TransformFunc converts one decoded vendor chunk into protocol events,
// mutating the per-stream context as it goes.
type TransformFunc func(chunk json.RawMessage, sc *protocol.StreamContext) ([]protocol.Event, error)

// TransformStream applies a dialect transformer to each chunk pulled from a
// source. A transformer error or panic is contained to the offending chunk:
// the stage emits a single protocol error event describing the failure and
// keeps pulling, so one malformed vendor chunk never kills the stream.
type TransformStream struct {
	src    ChunkSource
	fn     TransformFunc
	sc     *protocol.StreamContext
	logger *zap.Logger
}

// NewTransformStream returns a transform stage over src. A nil logger
// disables per-fault logging.
func NewTransformStream(src ChunkSource, fn TransformFunc, sc *protocol.StreamContext, logger *zap.Logger) *TransformStream {
	if sc == nil {
		sc = protocol.NewStreamContext()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransformStream{src: src, fn: fn, sc: sc, logger: logger}
}

// Context returns the stream context shared with the transformer.
func (s *TransformStream) Context() *protocol.StreamContext { return s.sc }

func (s *TransformStream) Next(ctx context.Context) ([]protocol.Event, error) {
	chunk, err := s.src.Next(ctx)
	if err != nil {
		return nil, err
	}

	events, terr := s.transform(chunk)
	if terr != nil {
		s.logger.Error("chunk transform failed",
			zap.Error(terr),
			zap.ByteString("chunk", chunk))
		return []protocol.Event{{
			Type: protocol.EventError,
			ID:   s.eventID(chunk),
			Data: protocol.NewChunkParseError(terr, string(chunk)),
		}}, nil
	}
	return events, nil
}

func (s *TransformStream) transform(chunk json.RawMessage) (events []protocol.Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = fmt.Errorf("transformer panic: %v", r)
		}
	}()
	return s.fn(chunk, s.sc)
}

// eventID recovers the chunk's own id for the error event, falling back to
// the last id the stream context saw.
func (s *TransformStream) eventID(chunk json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(chunk, &probe) == nil && probe.ID != "" {
		return probe.ID
	}
	return s.sc.ID
}

// Pipeline bundles a fully assembled event stream with its context so
// callers can both drain events and inspect terminal state (accumulated
// citations, last chunk id) afterwards.
type Pipeline struct {
	stream EventStream
	sc     *protocol.StreamContext
}

// NewPipeline wraps an assembled stream and its context.
func NewPipeline(stream EventStream, sc *protocol.StreamContext) *Pipeline {
	return &Pipeline{stream: stream, sc: sc}
}

func (p *Pipeline) Next(ctx context.Context) ([]protocol.Event, error) {
	return p.stream.Next(ctx)
}

// Context returns the stream context threaded through the pipeline stages.
func (p *Pipeline) Context() *protocol.StreamContext { return p.sc }

// Close releases any stage that holds resources, currently the callbacks
// dispatcher goroutine. Safe to call after io.EOF and more than once.
func (p *Pipeline) Close() error {
	if c, ok := p.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Collect drains a stream to completion and returns every event in order.
// Intended for tests and batch callers; live consumers should pull.
func Collect(ctx context.Context, s EventStream) ([]protocol.Event, error) {
	var out []protocol.Event
	for {
		events, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, events...)
	}
}
