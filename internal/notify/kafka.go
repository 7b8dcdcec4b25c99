package notify

import (
	"context"
	"fmt"

	"transport-booking/internal/event"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher keys messages by aggregate id so one aggregate's events
// stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log: log.With(zap.String("publisher", "kafka")),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, env event.Envelope) error {
	body, err := encode(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(env.AggregateID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.Type)},
			{Key: "event_id", Value: []byte(env.ID.String())},
			{Key: "tenant_id", Value: []byte(env.TenantID.String())},
		},
		Time: env.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Failed to publish event",
			zap.Error(err),
			zap.String("event_id", env.ID.String()),
			zap.String("event_type", string(env.Type)),
		)
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
