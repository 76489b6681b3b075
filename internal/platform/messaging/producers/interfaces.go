// Package producers publishes issuance outcomes to the event stream.
package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes keyed JSON events to one topic
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// KafkaWriter is the slice of kafka.Writer the producer needs, extracted
// so tests can substitute it
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
