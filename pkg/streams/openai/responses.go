package openai

import (
	"encoding/json"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// Responses dialect event type tags.
const (
	respCreated                  = "response.created"
	respOutputItemAdded          = "response.output_item.added"
	respOutputItemDone           = "response.output_item.done"
	respFunctionCallArgsDelta    = "response.function_call_arguments.delta"
	respOutputTextDelta          = "response.output_text.delta"
	respOutputTextAnnotation     = "response.output_text.annotation.added"
	respReasoningSummaryPart     = "response.reasoning_summary_part.added"
	respReasoningSummaryTextDelt = "response.reasoning_summary_text.delta"
	respCompleted                = "response.completed"

	itemTypeFunctionCall = "function_call"
)

// responsesChunk is one Responses dialect stream event. Unlike the chat
// dialect, the shape is discriminated by a type tag rather than merged into
// a delta object.
type responsesChunk struct {
	Type       string               `json:"type"`
	Response   *responsesResponse   `json:"response"`
	Item       json.RawMessage      `json:"item"`
	Delta      string               `json:"delta"`
	Annotation *responsesAnnotation `json:"annotation"`
}

type responsesResponse struct {
	ID     string                `json:"id"`
	Status string                `json:"status"`
	Usage  *usage.ResponsesUsage `json:"usage"`
}

type responsesItem struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type responsesAnnotation struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResponsesTransformer normalizes the event-typed Responses dialect.
type ResponsesTransformer struct {
	Provider string
}

// Transform maps one Responses event to protocol events, switching on the
// type tag. Unrecognized tags pass through as data so new upstream event
// kinds stay observable instead of disappearing.
func (t ResponsesTransformer) Transform(raw json.RawMessage, sc *protocol.StreamContext) ([]protocol.Event, error) {
	if isFirstChunkError(raw) {
		return firstChunkErrorEvents(raw, t.Provider)
	}

	var chunk responsesChunk
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil, err
	}

	switch chunk.Type {
	case respCreated:
		if chunk.Response != nil {
			sc.ID = chunk.Response.ID
		}
		sc.Citations = nil
		status := ""
		if chunk.Response != nil {
			status = chunk.Response.Status
		}
		return dataEvents(sc.ID, status), nil

	case respOutputItemAdded:
		var item responsesItem
		if err := json.Unmarshal(chunk.Item, &item); err != nil {
			return nil, err
		}
		if item.Type != itemTypeFunctionCall {
			return dataEvents(sc.ID, decodeAny(chunk.Item)), nil
		}
		index := sc.ToolIndex
		sc.ToolIndex++
		sc.Tool = &protocol.ToolRef{ID: item.CallID, Index: index, Name: item.Name}
		name := item.Name
		return []protocol.Event{{
			Type: protocol.EventToolCalls,
			ID:   sc.ID,
			Data: []protocol.ToolCallChunk{{
				ID:       item.CallID,
				Index:    index,
				Type:     "function",
				Function: protocol.ToolCallFunction{Name: &name, Arguments: item.Arguments},
			}},
		}}, nil

	case respFunctionCallArgsDelta:
		if sc.Tool == nil {
			return dataEvents(sc.ID, decodeAny(raw)), nil
		}
		return []protocol.Event{{
			Type: protocol.EventToolCalls,
			ID:   sc.ID,
			Data: []protocol.ToolCallChunk{{
				ID:       sc.Tool.ID,
				Index:    sc.Tool.Index,
				Type:     "function",
				Function: protocol.ToolCallFunction{Arguments: chunk.Delta},
			}},
		}}, nil

	case respOutputTextDelta:
		return []protocol.Event{{Type: protocol.EventText, ID: sc.ID, Data: chunk.Delta}}, nil

	case respReasoningSummaryPart:
		// The first part opens the reasoning segment; subsequent parts are
		// separate summaries and render as distinct paragraphs.
		if !sc.StartedReasoning {
			sc.StartedReasoning = true
			return []protocol.Event{{Type: protocol.EventReasoning, ID: sc.ID, Data: ""}}, nil
		}
		return []protocol.Event{{Type: protocol.EventReasoning, ID: sc.ID, Data: "\n"}}, nil

	case respReasoningSummaryTextDelt:
		return []protocol.Event{{Type: protocol.EventReasoning, ID: sc.ID, Data: chunk.Delta}}, nil

	case respOutputTextAnnotation:
		if chunk.Annotation != nil {
			sc.Citations = append(sc.Citations, protocol.CitationItem{
				Title: chunk.Annotation.Title,
				URL:   chunk.Annotation.URL,
			})
		}
		return nullTextEvents(sc.ID), nil

	case respOutputItemDone:
		if len(sc.Citations) > 0 {
			return groundingEvents(sc.ID, sc.Citations), nil
		}
		return nullTextEvents(sc.ID), nil

	case respCompleted:
		if chunk.Response != nil && chunk.Response.Usage != nil {
			return []protocol.Event{{
				Type: protocol.EventUsage,
				ID:   sc.ID,
				Data: usage.ConvertResponses(*chunk.Response.Usage),
			}}, nil
		}
		return dataEvents(sc.ID, decodeAny(raw)), nil

	default:
		return dataEvents(sc.ID, decodeAny(raw)), nil
	}
}

// nullTextEvents keeps the stream cadence without contributing visible
// content.
func nullTextEvents(id string) []protocol.Event {
	return []protocol.Event{{Type: protocol.EventText, ID: id, Data: nil}}
}
