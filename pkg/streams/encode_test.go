package streams_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/streams"
)

var _ = Describe("EncodeSSE", func() {
	var (
		ctx context.Context
		buf *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		buf = &bytes.Buffer{}
	})

	It("writes one SSE record per event, flattening multi-event batches", func() {
		stream := &staticStream{batches: [][]protocol.Event{
			{
				{Type: protocol.EventText, ID: "c1", Data: "hello"},
				{Type: protocol.EventBase64Image, ID: "c1", Data: "data:image/png;base64,AAA"},
			},
			{{Type: protocol.EventStop, ID: "c1", Data: "stop"}},
		}}

		Expect(streams.EncodeSSE(ctx, stream, buf, nil)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"id: c1\nevent: text\ndata: \"hello\"\n\n" +
				"id: c1\nevent: base64_image\ndata: \"data:image/png;base64,AAA\"\n\n" +
				"id: c1\nevent: stop\ndata: \"stop\"\n\n"))
	})

	It("appends nothing when the stream ends on a terminal event", func() {
		stream := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventStop, ID: "c1", Data: "stop"}},
		}}

		Expect(streams.EncodeSSE(ctx, stream, buf, &streams.EncodeOptions{RequireTerminalEvent: true})).To(Succeed())
		Expect(strings.Count(buf.String(), "event: ")).To(Equal(1))
	})

	It("injects an unexpected-end error when required and missing", func() {
		stream := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventText, ID: "c1", Data: "hel"}},
		}}

		Expect(streams.EncodeSSE(ctx, stream, buf, &streams.EncodeOptions{RequireTerminalEvent: true})).To(Succeed())

		records := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
		Expect(records).To(HaveLen(2))

		last := records[1]
		Expect(last).To(ContainSubstring("id: c1"))
		Expect(last).To(ContainSubstring("event: error"))

		_, payload, ok := strings.Cut(last, "data: ")
		Expect(ok).To(BeTrue())
		var detail map[string]any
		Expect(json.Unmarshal([]byte(payload), &detail)).To(Succeed())
		Expect(detail["message"]).To(Equal("Stream ended unexpectedly"))
		Expect(detail["name"]).To(Equal("Stream parsing error"))
		Expect(detail["type"]).To(Equal("StreamChunkError"))
		Expect(detail["body"]).To(Equal(map[string]any{
			"name":   "Stream parsing error",
			"reason": "unexpected_end",
		}))
	})

	It("treats an error event as terminal", func() {
		stream := &staticStream{batches: [][]protocol.Event{
			{{Type: protocol.EventError, ID: "c1", Data: protocol.NewUnexpectedEndError()}},
		}}

		Expect(streams.EncodeSSE(ctx, stream, buf, &streams.EncodeOptions{RequireTerminalEvent: true})).To(Succeed())
		Expect(strings.Count(buf.String(), "event: error")).To(Equal(1))
	})
})
