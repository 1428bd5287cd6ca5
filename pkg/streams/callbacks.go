package streams

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// Callbacks receives lifecycle and content notifications as events flow
// through the pipeline. All fields are optional. Handlers run on a single
// dispatcher goroutine, in event order, decoupled from stream delivery so a
// slow handler cannot stall the consumer for long.
type Callbacks struct {
	// OnStart fires once, when the first chunk has been processed.
	OnStart func()
	// OnText fires for every text event with non-nil content.
	OnText func(text string)
	// OnReasoning fires for every reasoning event with non-nil content.
	OnReasoning func(text string)
	// OnToolCall fires for every tool_calls event.
	OnToolCall func(calls []protocol.ToolCallChunk)
	// OnGrounding fires for every grounding event.
	OnGrounding func(g protocol.Grounding)
	// OnUsage fires for every usage event.
	OnUsage func(u usage.Usage)
	// OnCompletion fires once, when the stream ends naturally. It does not
	// fire when the stream is cut short by a transport error.
	OnCompletion func()
}

func (c Callbacks) empty() bool {
	return c.OnStart == nil && c.OnText == nil && c.OnReasoning == nil &&
		c.OnToolCall == nil && c.OnGrounding == nil && c.OnUsage == nil &&
		c.OnCompletion == nil
}

const callbackQueueSize = 256

// CallbacksStream wraps an event stream and dispatches callbacks for the
// events passing through it. Events are forwarded unchanged.
type CallbacksStream struct {
	src    EventStream
	cb     Callbacks
	logger *zap.Logger

	queue chan func()
	done  chan struct{}

	started   bool
	completed bool
	closeOnce sync.Once
}

// NewCallbacksStream wraps src. A zero Callbacks value makes the stage a
// passthrough with no dispatcher goroutine.
func NewCallbacksStream(src EventStream, cb Callbacks, logger *zap.Logger) *CallbacksStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &CallbacksStream{src: src, cb: cb, logger: logger}
	if !cb.empty() {
		s.queue = make(chan func(), callbackQueueSize)
		s.done = make(chan struct{})
		go s.dispatch()
	}
	return s
}

func (s *CallbacksStream) dispatch() {
	defer close(s.done)
	for fn := range s.queue {
		s.invoke(fn)
	}
}

func (s *CallbacksStream) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stream callback panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *CallbacksStream) enqueue(fn func()) {
	if s.queue == nil || fn == nil {
		return
	}
	s.queue <- fn
}

func (s *CallbacksStream) Next(ctx context.Context) ([]protocol.Event, error) {
	events, err := s.src.Next(ctx)
	if err == io.EOF {
		if !s.completed {
			s.completed = true
			if s.cb.OnCompletion != nil {
				s.enqueue(s.cb.OnCompletion)
			}
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}

	if !s.started {
		s.started = true
		if s.cb.OnStart != nil {
			s.enqueue(s.cb.OnStart)
		}
	}
	for _, ev := range events {
		s.notify(ev)
	}
	return events, nil
}

func (s *CallbacksStream) notify(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventText:
		if s.cb.OnText == nil {
			return
		}
		if text, ok := ev.Data.(string); ok {
			s.enqueue(func() { s.cb.OnText(text) })
		}
	case protocol.EventReasoning:
		if s.cb.OnReasoning == nil {
			return
		}
		if text, ok := ev.Data.(string); ok {
			s.enqueue(func() { s.cb.OnReasoning(text) })
		}
	case protocol.EventToolCalls:
		if s.cb.OnToolCall == nil {
			return
		}
		if calls, ok := ev.Data.([]protocol.ToolCallChunk); ok {
			s.enqueue(func() { s.cb.OnToolCall(calls) })
		}
	case protocol.EventGrounding:
		if s.cb.OnGrounding == nil {
			return
		}
		if g, ok := ev.Data.(protocol.Grounding); ok {
			s.enqueue(func() { s.cb.OnGrounding(g) })
		}
	case protocol.EventUsage:
		if s.cb.OnUsage == nil {
			return
		}
		if u, ok := ev.Data.(usage.Usage); ok {
			s.enqueue(func() { s.cb.OnUsage(u) })
		}
	}
}

// Close stops the dispatcher after draining queued callbacks. The stream
// must not be pulled after Close.
func (s *CallbacksStream) Close() error {
	s.closeOnce.Do(func() {
		if s.queue != nil {
			close(s.queue)
			<-s.done
		}
	})
	return nil
}
