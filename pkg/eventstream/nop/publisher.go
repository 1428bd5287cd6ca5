package nop

import (
	"context"

	"github.com/unistreamhq/unistream/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishStream validates input and otherwise does nothing.
func (p *Publisher) PublishStream(_ context.Context, event *eventstream.StreamFinishedEvent) error {
	if event == nil {
		return eventstream.ErrNilStreamEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
