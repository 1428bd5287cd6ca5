package streams

import (
	"context"
	"time"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// TokenSpeedStream measures generation throughput. It records the moment the
// first non-empty text event passes through, then appends a single speed
// event immediately after the stream's usage event, carrying tokens per
// second and time to first token in milliseconds. The stage is inert unless
// the caller supplied the request start time.
type TokenSpeedStream struct {
	src           EventStream
	inputStartAt  time.Time
	now           func() time.Time
	outputStartAt time.Time
	emitted       bool
}

// NewTokenSpeedStream wraps src. inputStartAt is the instant the upstream
// request was issued; a zero value disables the stage. now defaults to
// time.Now and exists for tests.
func NewTokenSpeedStream(src EventStream, inputStartAt time.Time, now func() time.Time) *TokenSpeedStream {
	if now == nil {
		now = time.Now
	}
	return &TokenSpeedStream{src: src, inputStartAt: inputStartAt, now: now}
}

func (s *TokenSpeedStream) Next(ctx context.Context) ([]protocol.Event, error) {
	events, err := s.src.Next(ctx)
	if err != nil || s.inputStartAt.IsZero() {
		return events, err
	}

	for i, ev := range events {
		if s.outputStartAt.IsZero() && ev.Type == protocol.EventText && nonEmptyText(ev.Data) {
			s.outputStartAt = s.now()
		}
		if s.emitted || ev.Type != protocol.EventUsage || s.outputStartAt.IsZero() {
			continue
		}
		u, ok := ev.Data.(usage.Usage)
		if !ok {
			continue
		}
		s.emitted = true
		events = append(events[:i+1:i+1], append([]protocol.Event{s.speedEvent(u)}, events[i+1:]...)...)
		break
	}
	return events, nil
}

func (s *TokenSpeedStream) speedEvent(u usage.Usage) protocol.Event {
	outputTokens := u.TotalOutputTokens
	if outputTokens == 0 {
		outputTokens = u.OutputTextTokens + u.OutputImageTokens
	}

	now := s.now()
	elapsed := now.Sub(s.outputStartAt).Seconds()
	if elapsed <= 0 {
		elapsed = time.Millisecond.Seconds()
	}
	return protocol.Event{
		Type: protocol.EventSpeed,
		ID:   protocol.SpeedEventID,
		Data: protocol.Speed{
			TPS:  float64(outputTokens) / elapsed,
			TTFT: float64(s.outputStartAt.Sub(s.inputStartAt).Milliseconds()),
		},
	}
}

func nonEmptyText(data any) bool {
	s, ok := data.(string)
	return ok && s != ""
}
