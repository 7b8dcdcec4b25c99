package notify

import (
	"context"
	"fmt"

	"transport-booking/internal/event"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes to a topic exchange using the event type as the
// routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       amqpChannel
	exchange string
	log      *zap.Logger
}

func NewAMQPPublisher(url, exchange string, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		log:      log.With(zap.String("publisher", "amqp")),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, env event.Envelope) error {
	body, err := encode(env)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, string(env.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID.String(),
		Type:         string(env.Type),
		Timestamp:    env.OccurredAt,
		Headers: amqp.Table{
			"tenant_id":      env.TenantID.String(),
			"aggregate_id":   env.AggregateID.String(),
			"schema_version": int32(env.Version),
		},
		Body: body,
	})
	if err != nil {
		p.log.Error("Failed to publish event",
			zap.Error(err),
			zap.String("event_id", env.ID.String()),
			zap.String("event_type", string(env.Type)),
		)
		return fmt.Errorf("publish %s to %s: %w", env.Type, p.exchange, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
