package protocol

// ToolRef identifies the tool call currently being accumulated across
// delta chunks that lack an id or name of their own.
type ToolRef struct {
	ID    string
	Index int
	Name  string
}

// StreamContext is the mutable per-stream state threaded through a dialect
// transformer. One instance is created per pipeline invocation and is owned
// exclusively by that pipeline for the stream's lifetime; it is never shared
// across concurrent streams, so no locking is needed.
type StreamContext struct {
	// ID is the current logical message/response id, set on the first
	// meaningful chunk and referenced by subsequent events.
	ID string

	// Tool is the identity of the tool call currently being accumulated.
	Tool *ToolRef

	// ToolIndex increases by one for each function-call item observed
	// within one response (Responses dialect).
	ToolIndex int

	// ThinkingInContent is true while a <think>...</think> region embedded
	// in plain content is open; it decides whether content chunks are
	// classified as reasoning or text.
	ThinkingInContent bool

	// ReturnedCitation guards against re-emitting the same citation set on
	// every chunk for vendors that repeat citations per delta.
	ReturnedCitation bool

	// Citations accumulates citation items for dialects that deliver them
	// incrementally (Responses annotation events).
	Citations []CitationItem

	// StartedReasoning guards the first reasoning-segment-opening event so
	// repeated part-added signals become separators instead of fresh opens.
	StartedReasoning bool
}

// NewStreamContext returns a fresh context for one stream.
func NewStreamContext() *StreamContext {
	return &StreamContext{}
}
