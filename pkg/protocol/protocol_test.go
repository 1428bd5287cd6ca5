package protocol_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/protocol"
)

var _ = Describe("Event", func() {
	Describe("Terminal", func() {
		It("is true for stop events", func() {
			e := protocol.Event{Type: protocol.EventStop, Data: "stop"}
			Expect(e.Terminal()).To(BeTrue())
		})

		It("is true for error events", func() {
			e := protocol.Event{Type: protocol.EventError}
			Expect(e.Terminal()).To(BeTrue())
		})

		It("is false for content events", func() {
			for _, t := range []protocol.EventType{
				protocol.EventText,
				protocol.EventReasoning,
				protocol.EventToolCalls,
				protocol.EventUsage,
				protocol.EventSpeed,
				protocol.EventData,
			} {
				Expect(protocol.Event{Type: t}.Terminal()).To(BeFalse())
			}
		})
	})
})

var _ = Describe("GenerateToolCallID", func() {
	It("derives the id from the name and position", func() {
		Expect(protocol.GenerateToolCallID(0, "get_weather")).To(Equal("get_weather_0"))
		Expect(protocol.GenerateToolCallID(2, "get_weather")).To(Equal("get_weather_2"))
	})

	It("falls back to a placeholder when the name is missing", func() {
		Expect(protocol.GenerateToolCallID(1, "")).To(Equal("unknown_tool_call_1"))
	})
})

var _ = Describe("error payloads", func() {
	It("wraps chunk parse failures with the offending chunk", func() {
		streamErr := protocol.NewChunkParseError(errFixture("bad json"), `{"truncated`)
		Expect(streamErr.Type).To(Equal(protocol.StreamChunkErrorName))

		body, ok := streamErr.Body.(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(body).To(HaveKey("message"))
		Expect(body).To(HaveKey("context"))
	})

	It("marks unexpected stream ends", func() {
		streamErr := protocol.NewUnexpectedEndError()
		Expect(streamErr.Message).To(Equal("Stream ended unexpectedly"))
		Expect(streamErr.Type).To(Equal(protocol.StreamChunkErrorName))
	})
})

type errFixture string

func (e errFixture) Error() string { return string(e) }
