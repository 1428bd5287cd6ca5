// Package streams implements the pull-based stream transformation pipeline:
// chunk sources, the first-error interceptor, the per-chunk transform stage
// with fault isolation, the token-speed calculator, the callbacks dispatcher,
// and the SSE encode sink. Stages compose by wrapping an upstream stage and
// pull one item at a time, so backpressure is inherent: nothing is read from
// the vendor transport faster than the downstream consumer drains events.
package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
)

// ChunkSource is a pull-based source of decoded vendor chunks. Next returns
// io.EOF when the source is exhausted; any other error is a transport error
// and terminates the pipeline.
type ChunkSource interface {
	Next(ctx context.Context) (json.RawMessage, error)
}

// SliceSource yields a fixed set of pre-decoded chunks. Used by tests and by
// the relay when injecting a synthesized first-chunk error ahead of a live
// upstream stream.
type SliceSource struct {
	chunks []json.RawMessage
	pos    int
}

// NewSliceSource returns a source over the given raw chunks.
func NewSliceSource(chunks ...json.RawMessage) *SliceSource {
	return &SliceSource{chunks: chunks}
}

// NewValueSource marshals each value to JSON and returns a source over the
// results. It panics on unmarshalable values; it exists for test fixtures.
func NewValueSource(values ...any) *SliceSource {
	chunks := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("streams: unmarshalable fixture value: %v", err))
		}
		chunks = append(chunks, raw)
	}
	return NewSliceSource(chunks...)
}

func (s *SliceSource) Next(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// IterSource adapts a Go iterator (the shape vendor SDK streams expose) into
// a ChunkSource. Each Next call advances the iterator exactly one step, so
// the iterable is never drained ahead of the consumer. An error yielded by
// the iterator propagates as a stream error and ends the source.
type IterSource struct {
	next func() (json.RawMessage, error, bool)
	stop func()
	done bool
}

// NewIterSource returns a source pulling from seq.
func NewIterSource(seq iter.Seq2[json.RawMessage, error]) *IterSource {
	next, stop := iter.Pull2(seq)
	return &IterSource{next: next, stop: stop}
}

func (s *IterSource) Next(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}
	if s.done {
		return nil, io.EOF
	}

	chunk, err, ok := s.next()
	if !ok {
		s.done = true
		return nil, io.EOF
	}
	if err != nil {
		s.done = true
		s.stop()
		return nil, err
	}
	return chunk, nil
}

// Close releases the underlying iterator. Safe to call more than once.
func (s *IterSource) Close() {
	if !s.done {
		s.done = true
		s.stop()
	}
}
