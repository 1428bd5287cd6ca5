package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/unistreamhq/unistream/pkg/usage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeStreamFinished is emitted after a relayed stream completes.
	EventTypeStreamFinished = "unistream.stream.finished"
)

// StreamFinishedEvent is a transport-neutral event payload for a completed stream.
type StreamFinishedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Stream        StreamMeta   `json:"stream"`
	Usage         *usage.Usage `json:"usage,omitempty"`
}

// EventSource identifies where the stream originated.
type EventSource struct {
	Provider string `json:"provider"`
	Dialect  string `json:"dialect"`
}

// StreamMeta captures stream lifecycle metadata for the event.
type StreamMeta struct {
	StreamID    string    `json:"stream_id"`
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
	EventCount  int       `json:"event_count"`
	TextEvents  int       `json:"text_events"`
	ToolEvents  int       `json:"tool_events"`
	ErrorEvents int       `json:"error_events"`
}

// NewStreamFinishedEvent builds a v1 event envelope around the given source
// and stream metadata with a fresh event id and the current emit time.
func NewStreamFinishedEvent(source EventSource, meta StreamMeta, u *usage.Usage) *StreamFinishedEvent {
	return &StreamFinishedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeStreamFinished,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Stream:        meta,
		Usage:         u,
	}
}
