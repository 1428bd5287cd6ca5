// Package protocol defines the normalized streaming protocol: the uniform,
// dialect-independent event model that every provider stream is converted
// into, and the per-stream mutable context the transformers thread through.
package protocol

import "fmt"

// EventType tags a normalized protocol event.
type EventType string

const (
	// EventText is incremental assistant text.
	EventText EventType = "text"

	// EventReasoning is incremental chain-of-thought or summary text.
	EventReasoning EventType = "reasoning"

	// EventToolCalls carries one or more partial or complete tool-call fragments.
	EventToolCalls EventType = "tool_calls"

	// EventGrounding carries a citation/source list.
	EventGrounding EventType = "grounding"

	// EventBase64Image is an inline generated image payload (data URI).
	EventBase64Image EventType = "base64_image"

	// EventUsage carries normalized token accounting.
	EventUsage EventType = "usage"

	// EventStop is the terminal marker carrying the finish reason string.
	EventStop EventType = "stop"

	// EventData is the escape hatch for unclassified vendor payloads,
	// passed through verbatim for observability.
	EventData EventType = "data"

	// EventError carries a structured error payload.
	EventError EventType = "error"

	// EventSpeed is the token-throughput side channel appended after usage.
	EventSpeed EventType = "speed"
)

// Event is one normalized protocol event. Every event carries an ID that
// correlates back to the stream context or a per-chunk item id; the SSE
// encoder uses it as the wire-level event id.
type Event struct {
	Type EventType
	ID   string
	Data any
}

// Terminal reports whether the event ends a stream from the consumer's
// point of view.
func (e Event) Terminal() bool {
	return e.Type == EventStop || e.Type == EventError
}

// ToolCallFunction is the function fragment of a tool-call chunk.
// Name is a pointer because delta chunks after the first intentionally
// carry a null name on the wire.
type ToolCallFunction struct {
	Name      *string `json:"name"`
	Arguments string  `json:"arguments"`
}

// ToolCallChunk is one partial or complete tool-call fragment inside an
// EventToolCalls event.
type ToolCallChunk struct {
	ID       string           `json:"id"`
	Index    int              `json:"index"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// CitationItem is one grounding source.
type CitationItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Grounding is the payload of an EventGrounding event.
type Grounding struct {
	Citations []CitationItem `json:"citations"`
}

// Speed is the payload of an EventSpeed event.
type Speed struct {
	// TPS is output tokens per second, measured from the first output token.
	TPS float64 `json:"tps"`

	// TTFT is time to first token in milliseconds, measured from request send.
	TTFT float64 `json:"ttft"`
}

// SpeedEventID is the fixed event id for EventSpeed events.
const SpeedEventID = "output_speed"

// unknownToolCallName seeds synthesized ids when a vendor omits the
// function name as well as the id.
const unknownToolCallName = "unknown_tool_call"

// GenerateToolCallID synthesizes a deterministic tool-call id for vendors
// that omit one, derived from the fragment's position and function name.
//
// Known limitation: two distinct tool calls sharing a name and position
// within one response would collide. No vendor observed so far produces
// that shape.
func GenerateToolCallID(index int, name string) string {
	if name == "" {
		name = unknownToolCallName
	}
	return fmt.Sprintf("%s_%d", name, index)
}
