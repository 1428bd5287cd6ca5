package openai_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/streams/openai"
	"github.com/unistreamhq/unistream/pkg/usage"
)

func transformResp(t openai.ResponsesTransformer, sc *protocol.StreamContext, raw string) []protocol.Event {
	events, err := t.Transform(json.RawMessage(raw), sc)
	Expect(err).NotTo(HaveOccurred())
	return events
}

var _ = Describe("ResponsesTransformer", func() {
	var (
		t  openai.ResponsesTransformer
		sc *protocol.StreamContext
	)

	BeforeEach(func() {
		t = openai.ResponsesTransformer{Provider: "openai"}
		sc = protocol.NewStreamContext()
	})

	It("captures the response id on creation and emits the status", func() {
		events := transformResp(t, sc, `{"type":"response.created","response":{"id":"resp_123","status":"in_progress"}}`)

		Expect(sc.ID).To(Equal("resp_123"))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Type).To(Equal(protocol.EventData))
		Expect(events[0].ID).To(Equal("resp_123"))
		Expect(events[0].Data).To(Equal("in_progress"))
	})

	It("resets accumulated citations on creation", func() {
		sc.Citations = []protocol.CitationItem{{Title: "stale", URL: "https://stale.example"}}
		transformResp(t, sc, `{"type":"response.created","response":{"id":"resp_123","status":"in_progress"}}`)
		Expect(sc.Citations).To(BeEmpty())
	})

	Describe("function-call items", func() {
		It("adopts the call as the active tool and seeds the arguments", func() {
			transformResp(t, sc, `{"type":"response.created","response":{"id":"resp_123","status":"in_progress"}}`)
			events := transformResp(t, sc, `{"type":"response.output_item.added","item":{"id":"fc_1","type":"function_call","call_id":"call_a","name":"get_weather","arguments":""}}`)

			Expect(events[0].Type).To(Equal(protocol.EventToolCalls))
			Expect(events[0].ID).To(Equal("resp_123"))
			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].ID).To(Equal("call_a"))
			Expect(calls[0].Index).To(Equal(0))
			Expect(*calls[0].Function.Name).To(Equal("get_weather"))

			Expect(sc.Tool).NotTo(BeNil())
			Expect(sc.Tool.ID).To(Equal("call_a"))
		})

		It("increments the tool index per function-call item", func() {
			transformResp(t, sc, `{"type":"response.output_item.added","item":{"type":"function_call","call_id":"call_a","name":"first","arguments":""}}`)
			events := transformResp(t, sc, `{"type":"response.output_item.added","item":{"type":"function_call","call_id":"call_b","name":"second","arguments":""}}`)

			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls[0].Index).To(Equal(1))
		})

		It("attributes argument deltas to the active tool", func() {
			transformResp(t, sc, `{"type":"response.output_item.added","item":{"type":"function_call","call_id":"call_a","name":"get_weather","arguments":""}}`)
			events := transformResp(t, sc, `{"type":"response.function_call_arguments.delta","delta":"{\"city\":\"Berlin\"}"}`)

			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls[0].ID).To(Equal("call_a"))
			Expect(calls[0].Index).To(Equal(0))
			Expect(calls[0].Function.Name).To(BeNil())
			Expect(calls[0].Function.Arguments).To(Equal(`{"city":"Berlin"}`))
		})

		It("passes non-function items through as data", func() {
			events := transformResp(t, sc, `{"type":"response.output_item.added","item":{"id":"msg_1","type":"message"}}`)
			Expect(events[0].Type).To(Equal(protocol.EventData))
		})
	})

	It("emits text for output-text deltas", func() {
		events := transformResp(t, sc, `{"type":"response.output_text.delta","delta":"Hello"}`)
		Expect(events[0].Type).To(Equal(protocol.EventText))
		Expect(events[0].Data).To(Equal("Hello"))
	})

	Describe("reasoning summaries", func() {
		It("opens the first segment with an empty reasoning event", func() {
			events := transformResp(t, sc, `{"type":"response.reasoning_summary_part.added"}`)
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal(""))
		})

		It("separates later segments with a newline", func() {
			transformResp(t, sc, `{"type":"response.reasoning_summary_part.added"}`)
			events := transformResp(t, sc, `{"type":"response.reasoning_summary_part.added"}`)
			Expect(events[0].Data).To(Equal("\n"))
		})

		It("emits reasoning text deltas", func() {
			events := transformResp(t, sc, `{"type":"response.reasoning_summary_text.delta","delta":"weighing options"}`)
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal("weighing options"))
		})
	})

	Describe("annotations and grounding", func() {
		It("accumulates citations and keeps cadence with null text", func() {
			events := transformResp(t, sc, `{"type":"response.output_text.annotation.added","annotation":{"type":"url_citation","title":"Source","url":"https://s.example"}}`)

			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(BeNil())
			Expect(sc.Citations).To(Equal([]protocol.CitationItem{{Title: "Source", URL: "https://s.example"}}))
		})

		It("flushes accumulated citations on item done", func() {
			transformResp(t, sc, `{"type":"response.output_text.annotation.added","annotation":{"title":"Source","url":"https://s.example"}}`)
			events := transformResp(t, sc, `{"type":"response.output_item.done","item":{"id":"msg_1","type":"message"}}`)

			Expect(events[0].Type).To(Equal(protocol.EventGrounding))
			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(HaveLen(1))
		})

		It("emits null text on item done without citations", func() {
			events := transformResp(t, sc, `{"type":"response.output_item.done","item":{"id":"msg_1","type":"message"}}`)
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(BeNil())
		})
	})

	Describe("completion", func() {
		It("emits normalized usage when present", func() {
			events := transformResp(t, sc, `{"type":"response.completed","response":{"id":"resp_123","status":"completed","usage":{"input_tokens":12,"output_tokens":34,"total_tokens":46,"output_tokens_details":{"reasoning_tokens":4}}}}`)

			Expect(events[0].Type).To(Equal(protocol.EventUsage))
			u := events[0].Data.(usage.Usage)
			Expect(u.TotalInputTokens).To(Equal(12))
			Expect(u.TotalOutputTokens).To(Equal(34))
			Expect(u.OutputReasoningTokens).To(Equal(4))
			Expect(u.OutputTextTokens).To(Equal(30))
		})

		It("passes a usage-less completion through as data", func() {
			events := transformResp(t, sc, `{"type":"response.completed","response":{"id":"resp_123","status":"completed"}}`)
			Expect(events[0].Type).To(Equal(protocol.EventData))
		})
	})

	It("passes unknown event tags through as data", func() {
		events := transformResp(t, sc, `{"type":"response.content_part.added","part":{"type":"output_text"}}`)
		Expect(events[0].Type).To(Equal(protocol.EventData))
	})

	It("converts a sentinel first chunk into an error event", func() {
		events := transformResp(t, sc, `{"_firstChunkError":true,"message":"bad request"}`)
		Expect(events[0].Type).To(Equal(protocol.EventError))
		Expect(events[0].ID).To(Equal("first_chunk_error"))
	})
})
