package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/ventasync-reconciler/internal/config"
)

// IssuanceEventProducer publishes document issuance outcomes to Kafka so
// downstream consumers (accounting exports, notifications) can react without
// polling the ledger. Delivery is best effort; the ledger row is the source
// of truth.
type IssuanceEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewIssuanceEventProducer creates the producer and ensures the topic exists
func NewIssuanceEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*IssuanceEventProducer, error) {
	if cfg.IssuanceTopic == "" {
		return nil, fmt.Errorf("kafka issuance topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for issuance event producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.IssuanceTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure issuance topic %s exists: %w", cfg.IssuanceTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.IssuanceTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Using async for high throughput
		WriteTimeout: cfg.WriteTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.IssuanceTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.IssuanceTopic, "count", len(messages))
			}
		},
	}

	return &IssuanceEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.IssuanceTopic,
	}, nil
}

func (p *IssuanceEventProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal issuance event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish issuance event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish issuance event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published issuance event",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *IssuanceEventProducer) Close() error {
	p.logger.Info("Closing issuance event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
