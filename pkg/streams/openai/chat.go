// Package openai implements the two OpenAI-compatible dialect transformers:
// the chat-completions delta dialect spoken, with assorted extensions, by
// most vendors, and the event-typed Responses dialect. Each transformer is a
// state machine over one protocol.StreamContext, mapping a raw vendor chunk
// to zero or more normalized events.
package openai

import (
	"bytes"
	"encoding/json"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// ChatTransformer normalizes the chat-completions chunk dialect. Provider
// names the upstream vendor and seeds the error type for in-band first-chunk
// errors that were not already classified upstream.
type ChatTransformer struct {
	Provider string
}

// Transform maps one chunk to protocol events. Dispatch is strictly ordered;
// the first matching rule wins for the whole chunk.
func (t ChatTransformer) Transform(raw json.RawMessage, sc *protocol.StreamContext) ([]protocol.Event, error) {
	if isFirstChunkError(raw) {
		return firstChunkErrorEvents(raw, t.Provider)
	}

	var chunk chatChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, err
	}

	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			return usageEvents(chunk.ID, t.Provider, *chunk.Usage), nil
		}
		return dataEvents(chunk.ID, decodeAny(raw)), nil
	}
	item := chunk.Choices[0]

	if events := t.toolCallEvents(chunk, item, sc); events != nil {
		return events, nil
	}
	if len(item.Delta.Images) > 0 {
		return imageEvents(chunk.ID, item.Delta.Images), nil
	}
	if item.FinishReason != nil {
		return t.finishEvents(chunk, item), nil
	}
	if events := t.contentEvents(chunk, item, sc); events != nil {
		return events, nil
	}
	if item.hasDelta() && item.Delta.contentIsNull() {
		return dataEvents(chunk.ID, decodeAny(item.DeltaRaw)), nil
	}
	if chunk.Usage != nil {
		return usageEvents(chunk.ID, t.Provider, *chunk.Usage), nil
	}
	return dataEvents(chunk.ID, map[string]any{
		"delta": decodeAny(item.DeltaRaw),
		"id":    chunk.ID,
		"index": item.Index,
	}), nil
}

// toolCallEvents handles tool-call deltas. The chunk qualifies when at least
// one fragment has a usable index, but the emitted event echoes every
// fragment, synthesizing ids and indices the vendor left out. Mistral-style
// dialects omit both the index and the id entirely.
func (t ChatTransformer) toolCallEvents(chunk chatChunk, item chatChoice, sc *protocol.StreamContext) []protocol.Event {
	calls := item.Delta.ToolCalls
	valid := false
	for _, tc := range calls {
		if tc.Index == nil || *tc.Index >= 0 {
			valid = true
			break
		}
	}
	if !valid {
		return nil
	}

	data := make([]protocol.ToolCallChunk, 0, len(calls))
	for pos, tc := range calls {
		idx := pos
		if tc.Index != nil {
			idx = *tc.Index
		}
		var name *string
		args := ""
		if tc.Function != nil {
			name = tc.Function.Name
			args = tc.Function.Arguments
		}
		if sc.Tool == nil {
			adopted := ""
			if name != nil {
				adopted = *name
			}
			sc.Tool = &protocol.ToolRef{ID: tc.ID, Index: idx, Name: adopted}
		}

		id := tc.ID
		if id == "" && sc.Tool != nil {
			id = sc.Tool.ID
		}
		if id == "" {
			fnName := ""
			if name != nil {
				fnName = *name
			}
			id = protocol.GenerateToolCallID(pos, fnName)
		}
		typ := tc.Type
		if typ == "" {
			typ = "function"
		}
		data = append(data, protocol.ToolCallChunk{
			ID:       id,
			Index:    idx,
			Type:     typ,
			Function: protocol.ToolCallFunction{Name: name, Arguments: args},
		})
	}
	return []protocol.Event{{Type: protocol.EventToolCalls, ID: chunk.ID, Data: data}}
}

// finishEvents handles chunks carrying a finish reason. Several vendors
// bundle final payloads with the finish signal, so the stop event is the
// fallback, not the rule: trailing content, annotation citations, message
// citations, usage, and top-level citations all take precedence, in that
// order.
func (t ChatTransformer) finishEvents(chunk chatChunk, item chatChoice) []protocol.Event {
	if content, ok := item.Delta.contentString(); ok && content != "" {
		// MiniMax echoes the search-tool result back as a tool-role
		// message; rendering it would duplicate the search payload.
		if item.Delta.Role == "tool" {
			return []protocol.Event{{Type: protocol.EventText, ID: chunk.ID, Data: nil}}
		}
		return textWithImages(chunk.ID, content)
	}
	if len(item.Delta.Annotations) > 0 {
		citations := make([]protocol.CitationItem, 0, len(item.Delta.Annotations))
		for _, a := range item.Delta.Annotations {
			citations = append(citations, protocol.CitationItem{Title: a.URLCitation.Title, URL: a.URLCitation.URL})
		}
		return groundingEvents(chunk.ID, citations)
	}
	if len(item.Messages) > 0 {
		last := item.Messages[len(item.Messages)-1]
		if len(last.Annotations) > 0 {
			citations := make([]protocol.CitationItem, 0, len(last.Annotations))
			for _, a := range last.Annotations {
				citations = append(citations, protocol.CitationItem{Title: a.URL, URL: a.URL})
			}
			return groundingEvents(chunk.ID, citations)
		}
	}
	if chunk.Usage != nil {
		return usageEvents(chunk.ID, t.Provider, *chunk.Usage)
	}
	if len(chunk.Citations) > 0 {
		return groundingEvents(chunk.ID, mapCitations(chunk.Citations))
	}
	return []protocol.Event{{Type: protocol.EventStop, ID: chunk.ID, Data: *item.FinishReason}}
}

// contentEvents handles textual deltas. It returns nil when the chunk has no
// string-typed reasoning or content payload, letting dispatch fall through.
func (t ChatTransformer) contentEvents(chunk chatChunk, item chatChoice, sc *protocol.StreamContext) []protocol.Event {
	if !item.hasDelta() {
		return nil
	}
	reasoning, content := item.Delta.resolveSources()

	// A chunk where both resolve to empty strings carries no text signal;
	// dropping the content side prevents a spurious empty text event.
	if reasoning != nil && content != nil {
		if *content == "" && *reasoning == "" {
			content = nil
		} else if *reasoning == "" {
			reasoning = nil
		}
	}
	if reasoning != nil {
		return []protocol.Event{{Type: protocol.EventReasoning, ID: chunk.ID, Data: *reasoning}}
	}
	if content == nil {
		return nil
	}

	text := *content
	thinkingContent := stripThinkTags(text)
	if containsThinkOpen(text) {
		sc.ThinkingInContent = true
	} else if containsThinkClose(text) {
		sc.ThinkingInContent = false
	}

	if text == "" && chunk.Usage != nil {
		return usageEvents(chunk.ID, t.Provider, *chunk.Usage)
	}

	if !sc.ReturnedCitation {
		if citations := chunk.citationSources(); len(citations) > 0 {
			sc.ReturnedCitation = true
			return append(
				groundingEvents(chunk.ID, mapCitations(citations)),
				textOrReasoning(chunk.ID, thinkingContent, sc.ThinkingInContent),
			)
		}
	}

	if !sc.ThinkingInContent {
		if events, found := imageRichText(chunk.ID, thinkingContent); found {
			return events
		}
	}
	return []protocol.Event{textOrReasoning(chunk.ID, thinkingContent, sc.ThinkingInContent)}
}

func textOrReasoning(id, text string, thinking bool) protocol.Event {
	typ := protocol.EventText
	if thinking {
		typ = protocol.EventReasoning
	}
	return protocol.Event{Type: typ, ID: id, Data: text}
}

func usageEvents(id, provider string, u usage.CompletionUsage) []protocol.Event {
	return []protocol.Event{{Type: protocol.EventUsage, ID: id, Data: usage.Convert(u, provider)}}
}

func dataEvents(id string, data any) []protocol.Event {
	return []protocol.Event{{Type: protocol.EventData, ID: id, Data: data}}
}

func groundingEvents(id string, citations []protocol.CitationItem) []protocol.Event {
	return []protocol.Event{{Type: protocol.EventGrounding, ID: id, Data: protocol.Grounding{Citations: citations}}}
}

func imageEvents(id string, images []json.RawMessage) []protocol.Event {
	events := make([]protocol.Event, 0, len(images))
	for _, img := range images {
		if url := resolveImageURL(img); url != "" {
			events = append(events, protocol.Event{Type: protocol.EventBase64Image, ID: id, Data: url})
		}
	}
	return events
}

var jsonNull = []byte("null")

func isFirstChunkError(raw json.RawMessage) bool {
	var probe struct {
		FirstChunkError bool `json:"_firstChunkError"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.FirstChunkError
}

// firstChunkErrorEvents converts a sentinel-tagged chunk into the single
// error event the protocol defines for in-band provider failures. The
// sentinel and the internal name/stack fields are stripped before the chunk
// body goes on the wire.
func firstChunkErrorEvents(raw json.RawMessage, provider string) ([]protocol.Event, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	delete(payload, protocol.FirstChunkErrorKey)
	delete(payload, "name")
	delete(payload, "stack")

	errType, _ := payload[protocol.ErrorTypeKey].(string)
	if errType == "" {
		if provider != "" {
			errType = provider + "BizError"
		} else {
			errType = protocol.ErrorTypeProviderBizError
		}
	}
	return []protocol.Event{{
		Type: protocol.EventError,
		ID:   protocol.FirstChunkErrorID,
		Data: protocol.StreamError{Body: payload, Type: errType},
	}}, nil
}

func decodeAny(raw json.RawMessage) any {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
