package streams_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/streams"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// callbackRecorder collects dispatched callbacks under a lock so specs can
// assert after the dispatcher goroutine is drained by Close.
type callbackRecorder struct {
	mu         sync.Mutex
	starts     int
	completes  int
	texts      []string
	reasonings []string
	toolCalls  [][]protocol.ToolCallChunk
	usages     []usage.Usage
}

func (r *callbackRecorder) callbacks() streams.Callbacks {
	return streams.Callbacks{
		OnStart: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.starts++
		},
		OnCompletion: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
		},
		OnText: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.texts = append(r.texts, text)
		},
		OnReasoning: func(text string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.reasonings = append(r.reasonings, text)
		},
		OnToolCall: func(calls []protocol.ToolCallChunk) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.toolCalls = append(r.toolCalls, calls)
		},
		OnUsage: func(u usage.Usage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.usages = append(r.usages, u)
		},
	}
}

var _ = Describe("CallbacksStream", func() {
	var (
		ctx context.Context
		rec *callbackRecorder
	)

	BeforeEach(func() {
		ctx = context.Background()
		rec = &callbackRecorder{}
	})

	It("dispatches matching callbacks in event order", func() {
		inner := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventText, ID: "c1", Data: "hello"}},
			{{Type: protocol.EventReasoning, ID: "c1", Data: "because"}},
			{{Type: protocol.EventUsage, ID: "c1", Data: usage.Usage{TotalTokens: 7}}},
		}}
		stream := streams.NewCallbacksStream(inner, rec.callbacks(), nil)

		events, err := streams.Collect(ctx, stream)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(3))
		Expect(stream.Close()).To(Succeed())

		Expect(rec.starts).To(Equal(1))
		Expect(rec.completes).To(Equal(1))
		Expect(rec.texts).To(Equal([]string{"hello"}))
		Expect(rec.reasonings).To(Equal([]string{"because"}))
		Expect(rec.usages).To(HaveLen(1))
		Expect(rec.usages[0].TotalTokens).To(Equal(7))
	})

	It("fires onStart exactly once", func() {
		inner := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventText, ID: "c1", Data: "a"}},
			{{Type: protocol.EventText, ID: "c1", Data: "b"}},
		}}
		stream := streams.NewCallbacksStream(inner, rec.callbacks(), nil)

		_, err := streams.Collect(ctx, stream)
		Expect(err).NotTo(HaveOccurred())
		Expect(stream.Close()).To(Succeed())

		Expect(rec.starts).To(Equal(1))
	})

	It("skips onCompletion when the stream dies on a transport error", func() {
		stream := streams.NewCallbacksStream(failingSource{}.asEventStream(), rec.callbacks(), nil)

		_, err := streams.Collect(ctx, stream)
		Expect(err).To(HaveOccurred())
		Expect(stream.Close()).To(Succeed())

		Expect(rec.completes).To(BeZero())
	})

	It("skips null-data text events", func() {
		inner := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventText, ID: "c1", Data: nil}},
			{{Type: protocol.EventText, ID: "c1", Data: "visible"}},
		}}
		stream := streams.NewCallbacksStream(inner, rec.callbacks(), nil)

		_, err := streams.Collect(ctx, stream)
		Expect(err).NotTo(HaveOccurred())
		Expect(stream.Close()).To(Succeed())

		Expect(rec.texts).To(Equal([]string{"visible"}))
	})

	It("survives a panicking callback", func() {
		cb := streams.Callbacks{
			OnText: func(string) { panic("caller bug") },
		}
		inner := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventText, ID: "c1", Data: "a"}},
			{{Type: protocol.EventText, ID: "c1", Data: "b"}},
		}}
		stream := streams.NewCallbacksStream(inner, cb, nil)

		events, err := streams.Collect(ctx, stream)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(HaveLen(2))
		Expect(stream.Close()).To(Succeed())
	})
})

type failingEventStream struct {
	err error
}

func (s failingEventStream) Next(ctx context.Context) ([]protocol.Event, error) {
	return nil, s.err
}

func (s failingSource) asEventStream() streams.EventStream {
	err := s.err
	if err == nil {
		err = context.DeadlineExceeded
	}
	return failingEventStream{err: err}
}
