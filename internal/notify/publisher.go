// Package notify delivers relayed outbox events to the notification
// collaborator. Delivery is at least once; DedupPublisher narrows repeats.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transport-booking/internal/event"
	"transport-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, env event.Envelope) error
}

// LogPublisher only logs. It is the default when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.With(zap.String("publisher", "log"))}
}

func (p *LogPublisher) Publish(_ context.Context, env event.Envelope) error {
	p.log.Info("Event published",
		zap.String("event_id", env.ID.String()),
		zap.String("event_type", string(env.Type)),
		zap.String("tenant_id", env.TenantID.String()),
		zap.String("aggregate_id", env.AggregateID.String()),
	)
	return nil
}

func encode(env event.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", env.ID, err)
	}
	return b, nil
}

// New builds the publisher chain from config. The returned close func
// releases broker connections.
func New(cfg utils.NotifyConfig, redisCfg utils.RedisConfig, log *zap.Logger) (Publisher, func() error, error) {
	var (
		pub     Publisher
		closers []func() error
	)

	switch cfg.Driver {
	case "", "log":
		pub = NewLogPublisher(log)
	case "amqp":
		p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			return nil, nil, err
		}
		pub = p
		closers = append(closers, p.Close)
	case "kafka":
		p := NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		pub = p
		closers = append(closers, p.Close)
	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}

	pub, closers, err := withDedup(pub, closers, redisCfg, cfg.DedupTTL, log)
	if err != nil {
		return nil, nil, err
	}
	return pub, closeAll(closers), nil
}

// withDedup wraps pub in the Redis dedup decorator when a URL is set. On
// failure every closer collected so far is run before returning.
func withDedup(pub Publisher, closers []func() error, redisCfg utils.RedisConfig, ttl time.Duration, log *zap.Logger) (Publisher, []func() error, error) {
	if redisCfg.URL == "" {
		return pub, closers, nil
	}

	opt, err := redis.ParseURL(redisCfg.URL)
	if err != nil {
		if cerr := closeAll(closers)(); cerr != nil {
			log.Warn("Failed to close publisher after config error", zap.Error(cerr))
		}
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)
	return NewDedupPublisher(pub, client, ttl, log), append(closers, client.Close), nil
}

// closeAll closes in reverse order of construction and returns the first error.
func closeAll(closers []func() error) func() error {
	return func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}
