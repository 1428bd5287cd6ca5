// Package kafka publishes stream events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/unistreamhq/unistream/pkg/eventstream"
)

const writeTimeout = 10 * time.Second

// Publisher writes stream events to a Kafka topic as JSON messages keyed by
// stream id, so all events for a stream land on the same partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a Kafka publisher for the given brokers and topic.
// Brokers is a comma-separated list of host:port addresses.
func NewPublisher(brokers, topic string) (*Publisher, error) {
	addrs := splitBrokers(brokers)
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("no kafka topic configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: writeTimeout,
	}

	return &Publisher{writer: writer}, nil
}

// PublishStream marshals the event to JSON and writes it to the topic.
func (p *Publisher) PublishStream(ctx context.Context, event *eventstream.StreamFinishedEvent) error {
	if event == nil {
		return eventstream.ErrNilStreamEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Stream.StreamID),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}

	return nil
}

// Close flushes pending messages and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func splitBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	addrs := make([]string, 0, len(parts))
	for _, part := range parts {
		if addr := strings.TrimSpace(part); addr != "" {
			addrs = append(addrs, addr)
		}
	}

	return addrs
}
