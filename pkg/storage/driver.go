// Package storage
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/unistreamhq/unistream/pkg/usage"
)

// StoredEvent is a single normalized event captured from a relayed stream,
// in emit order.
type StoredEvent struct {
	Seq  int             `json:"seq"`
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StreamRecord is a persisted transcript of a relayed stream: its lifecycle
// metadata, the normalized events in order, and the final usage if the
// upstream reported one.
type StreamRecord struct {
	ID          string        `json:"id"`
	Provider    string        `json:"provider"`
	Dialect     string        `json:"dialect"`
	Model       string        `json:"model,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	DurationMs  int64         `json:"duration_ms"`
	HTTPStatus  int           `json:"http_status"`
	Usage       *usage.Usage  `json:"usage,omitempty"`
	Events      []StoredEvent `json:"events,omitempty"`
}

// Driver defines the interface for persisting and retrieving stream
// transcripts in a storage backend.
type Driver interface {
	// SaveStream stores a stream record with its events. Saving a record
	// with an existing id replaces the previous transcript.
	SaveStream(ctx context.Context, record *StreamRecord) error

	// GetStream retrieves a stream record by id, events included.
	GetStream(ctx context.Context, id string) (*StreamRecord, error)

	// ListStreams returns up to limit stream records, most recently started
	// first, without their events. A limit of 0 returns all records.
	ListStreams(ctx context.Context, limit int) ([]*StreamRecord, error)

	// DeleteStream removes a stream record and its events.
	DeleteStream(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
