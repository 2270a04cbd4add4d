package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"channel-service/internal/presence"

	"github.com/segmentio/kafka-go"
)

// Producer publishes presence transitions to a kafka topic for downstream
// consumers (analytics, moderation). Delivery is best-effort: a broker
// outage is logged and the transition dropped, never surfaced to the
// session path.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(brokers []string, topic string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		// Async keeps WriteMessages from waiting on batching or broker
		// acks; presence transitions must never stall behind the audit
		// stream. Delivery failures surface through Completion.
		Async: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("failed to publish presence transitions",
					"count", len(messages), "error", err)
			}
		},
	}
	return &Producer{writer: writer, logger: logger}
}

func (p *Producer) RecordTransition(ctx context.Context, t presence.Transition) {
	value, err := json.Marshal(t)
	if err != nil {
		p.logger.Error("failed to marshal presence transition", "error", err)
		return
	}

	// Key by channel so one channel's transitions stay ordered within a
	// partition.
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.Channel),
		Value: value,
	})
	if err != nil {
		p.logger.Warn("failed to enqueue presence transition",
			"channel", t.Channel, "kind", t.Kind, "error", err)
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
