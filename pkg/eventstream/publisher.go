package eventstream

import "context"

// Publisher publishes stream events to an event stream backend.
type Publisher interface {
	PublishStream(ctx context.Context, event *StreamFinishedEvent) error
	Close() error
}
