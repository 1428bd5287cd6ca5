package openai_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/streams/openai"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// transform runs one raw chunk through a fresh helper-owned call, reusing sc
// across calls so state-machine specs can span multiple chunks.
func transform(t openai.ChatTransformer, sc *protocol.StreamContext, raw string) []protocol.Event {
	events, err := t.Transform(json.RawMessage(raw), sc)
	Expect(err).NotTo(HaveOccurred())
	return events
}

var _ = Describe("ChatTransformer", func() {
	var (
		t  openai.ChatTransformer
		sc *protocol.StreamContext
	)

	BeforeEach(func() {
		t = openai.ChatTransformer{Provider: "openai"}
		sc = protocol.NewStreamContext()
	})

	Describe("text deltas", func() {
		It("emits text per content delta and stop on finish", func() {
			var events []protocol.Event
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"Hello"},"index":0}]}`)...)
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":" world"},"index":0}]}`)...)
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{},"finish_reason":"stop","index":0}]}`)...)

			Expect(events).To(HaveLen(3))
			Expect(events[0]).To(Equal(protocol.Event{Type: protocol.EventText, ID: "c1", Data: "Hello"}))
			Expect(events[1]).To(Equal(protocol.Event{Type: protocol.EventText, ID: "c1", Data: " world"}))
			Expect(events[2]).To(Equal(protocol.Event{Type: protocol.EventStop, ID: "c1", Data: "stop"}))
		})

		It("suppresses the text event when content and reasoning are both empty", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"","reasoning_content":""},"index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal(""))
		})

		It("drops an empty reasoning field accompanying real content", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"hi","reasoning_content":""},"index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(Equal("hi"))
		})
	})

	Describe("reasoning deltas", func() {
		It("reads reasoning_content", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":null,"reasoning_content":"thinking"},"index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal("thinking"))
		})

		It("reads the reasoning field shape", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"reasoning":"hmm"},"index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal("hmm"))
		})

		It("joins thinking blocks in structured content", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":[{"type":"thinking","thinking":[{"type":"text","text":"step one "},{"type":"text","text":"step two"}]},{"type":"thinking","thinking":[{"type":"text","text":" done"}]}]},"index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal("step one step two done"))
		})

		It("skips thinking blocks whose payload is not a block list", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":[{"type":"thinking","thinking":"bare string"}]},"index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal(""))
		})

		It("treats a null reasoning_content next to content as no reasoning", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"plain","reasoning_content":null},"index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(Equal("plain"))
		})
	})

	Describe("think tags embedded in content", func() {
		It("classifies content between the tags as reasoning", func() {
			var events []protocol.Event
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"<think>let me"},"index":0}]}`)...)
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":" reason"},"index":0}]}`)...)
			events = append(events, transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"</think>answer"},"index":0}]}`)...)

			Expect(events[0].Type).To(Equal(protocol.EventReasoning))
			Expect(events[0].Data).To(Equal("let me"))
			Expect(events[1].Type).To(Equal(protocol.EventReasoning))
			Expect(events[1].Data).To(Equal(" reason"))
			Expect(events[2].Type).To(Equal(protocol.EventText))
			Expect(events[2].Data).To(Equal("answer"))
		})
	})

	Describe("tool calls", func() {
		It("emits fragments with the vendor's ids and indices", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"get_weather","arguments":""}}]},"index":0}]}`)

			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventToolCalls))
			calls, ok := events[0].Data.([]protocol.ToolCallChunk)
			Expect(ok).To(BeTrue())
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].ID).To(Equal("call_abc"))
			Expect(calls[0].Index).To(Equal(0))
			Expect(calls[0].Type).To(Equal("function"))
			Expect(*calls[0].Function.Name).To(Equal("get_weather"))
		})

		It("synthesizes stable ids for dialects that omit them", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"tool_calls":[{"function":{"name":"search","arguments":"{}"}},{"function":{"name":"fetch","arguments":"{}"}}]},"index":0}]}`)

			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls).To(HaveLen(2))
			Expect(calls[0].ID).To(Equal("search_0"))
			Expect(calls[1].ID).To(Equal("fetch_1"))
			Expect(calls[0].Index).To(Equal(0))
			Expect(calls[1].Index).To(Equal(1))
		})

		It("reuses the adopted tool id for id-less continuation fragments", func() {
			transform(t, sc, `{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_abc","function":{"name":"get_weather","arguments":""}}]},"index":0}]}`)
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]},"index":0}]}`)

			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls[0].ID).To(Equal("call_abc"))
			Expect(calls[0].Function.Name).To(BeNil())
			Expect(calls[0].Function.Arguments).To(Equal(`{"city":`))
		})

		It("defaults the fragment type to function", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"tool_calls":[{"index":0,"id":"x","function":{"name":"f","arguments":""}}]},"index":0}]}`)
			calls := events[0].Data.([]protocol.ToolCallChunk)
			Expect(calls[0].Type).To(Equal("function"))
		})
	})

	Describe("inline image deltas", func() {
		It("emits one base64_image event per resolvable entry", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"images":[{"image_url":{"url":"data:image/png;base64,AAA"}},{"unrelated":true},"data:image/png;base64,BBB"]},"index":0}]}`)

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(protocol.EventBase64Image))
			Expect(events[0].Data).To(Equal("data:image/png;base64,AAA"))
			Expect(events[1].Data).To(Equal("data:image/png;base64,BBB"))
		})
	})

	Describe("markdown-embedded base64 images", func() {
		It("splits cleaned text from extracted images", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"Here you go ![preview](data:image/png;base64,QUJD)"},"index":0}]}`)

			Expect(events).To(HaveLen(2))
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(Equal("Here you go"))
			Expect(events[1].Type).To(Equal(protocol.EventBase64Image))
			Expect(events[1].Data).To(Equal("data:image/png;base64,QUJD"))
		})
	})

	Describe("citations", func() {
		It("emits grounding once even when every chunk repeats the citations", func() {
			chunk := `{"id":"c1","citations":["https://a.example","https://b.example"],"choices":[{"delta":{"content":"cited"},"index":0}]}`

			first := transform(t, sc, chunk)
			Expect(first).To(HaveLen(2))
			Expect(first[0].Type).To(Equal(protocol.EventGrounding))
			g := first[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{
				{Title: "https://a.example", URL: "https://a.example"},
				{Title: "https://b.example", URL: "https://b.example"},
			}))
			Expect(first[1].Type).To(Equal(protocol.EventText))

			second := transform(t, sc, chunk)
			Expect(second).To(HaveLen(1))
			Expect(second[0].Type).To(Equal(protocol.EventText))
		})

		It("maps object citations from search extensions", func() {
			events := transform(t, sc, `{"id":"c1","web_search":[{"title":"Doc","link":"https://doc.example"}],"choices":[{"delta":{"content":"see doc"},"index":0}]}`)

			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{{Title: "Doc", URL: "https://doc.example"}}))
		})

		It("drops citations missing a title or url", func() {
			events := transform(t, sc, `{"id":"c1","web_search":[{"title":"No link"},{"title":"","link":"https://untitled.example"},{"title":"Kept","link":"https://kept.example"}],"choices":[{"delta":{"content":"see doc"},"index":0}]}`)

			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{{Title: "Kept", URL: "https://kept.example"}}))
		})
	})

	Describe("finish-reason bundling", func() {
		It("renders trailing content instead of a bare stop", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"final words"},"finish_reason":"stop","index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(Equal("final words"))
		})

		It("suppresses a tool-role search echo", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":"[search results]","role":"tool"},"finish_reason":"stop","index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventText))
			Expect(events[0].Data).To(BeNil())
		})

		It("prefers delta annotations over a bare stop", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"annotations":[{"type":"url_citation","url_citation":{"title":"Ref","url":"https://ref.example"}}]},"finish_reason":"stop","index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventGrounding))
			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{{Title: "Ref", URL: "https://ref.example"}}))
		})

		It("reads flat annotations off the last bundled message", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{},"messages":[{"role":"user"},{"role":"assistant","annotations":[{"text":"[5]","url":"https://m.example","quote":"cited passage"}]}],"finish_reason":"stop","index":0}]}`)
			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{{Title: "https://m.example", URL: "https://m.example"}}))
		})

		It("emits usage bundled with the finish signal", func() {
			events := transform(t, sc, `{"id":"c1","usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30},"choices":[{"delta":{},"finish_reason":"stop","index":0}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventUsage))
			u := events[0].Data.(usage.Usage)
			Expect(u.TotalInputTokens).To(Equal(10))
			Expect(u.TotalOutputTokens).To(Equal(20))
			Expect(u.TotalTokens).To(Equal(30))
		})

		It("maps top-level citations at finish", func() {
			events := transform(t, sc, `{"id":"c1","citations":["https://c.example"],"choices":[{"delta":{},"finish_reason":"stop","index":0}]}`)
			g := events[0].Data.(protocol.Grounding)
			Expect(g.Citations).To(Equal([]protocol.CitationItem{{Title: "https://c.example", URL: "https://c.example"}}))
		})
	})

	Describe("no-choice chunks", func() {
		It("emits usage for usage-only chunks", func() {
			events := transform(t, sc, `{"id":"c1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventUsage))
		})

		It("passes other chunks through as data", func() {
			events := transform(t, sc, `{"id":"c1","choices":[],"model":"gpt-4o"}`)
			Expect(events[0].Type).To(Equal(protocol.EventData))
		})
	})

	Describe("fallback dispatch", func() {
		It("passes a null-content delta through as data", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"content":null},"index":0}]}`)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventData))
			Expect(events[0].Data).To(Equal(map[string]any{"content": nil}))
		})

		It("wraps unrecognized deltas with id and index", func() {
			events := transform(t, sc, `{"id":"c1","choices":[{"delta":{"refusal":"no"},"index":2}]}`)
			Expect(events[0].Type).To(Equal(protocol.EventData))
			Expect(events[0].Data).To(Equal(map[string]any{
				"delta": map[string]any{"refusal": "no"},
				"id":    "c1",
				"index": 2,
			}))
		})
	})

	Describe("first-chunk errors", func() {
		It("emits a single error event with the fixed id", func() {
			events := transform(t, sc, `{"_firstChunkError":true,"message":"quota exceeded","name":"InsufficientQuota","stack":"secret"}`)

			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(protocol.EventError))
			Expect(events[0].ID).To(Equal("first_chunk_error"))

			serr := events[0].Data.(protocol.StreamError)
			Expect(serr.Type).To(Equal("openaiBizError"))
			body := serr.Body.(map[string]any)
			Expect(body).To(HaveKeyWithValue("message", "quota exceeded"))
			Expect(body).NotTo(HaveKey("name"))
			Expect(body).NotTo(HaveKey("stack"))
			Expect(body).NotTo(HaveKey("_firstChunkError"))
		})

		It("keeps a pre-classified error type", func() {
			events := transform(t, sc, `{"_firstChunkError":true,"errorType":"InvalidAPIKey","message":"bad key"}`)
			serr := events[0].Data.(protocol.StreamError)
			Expect(serr.Type).To(Equal("InvalidAPIKey"))
		})
	})
})
