package notify

import (
	"context"
	"fmt"
	"time"

	"transport-booking/internal/event"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type dedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// DedupPublisher skips envelopes already delivered within ttl. A failed
// inner publish releases the marker so the relay retry goes through.
type DedupPublisher struct {
	next  Publisher
	store dedupStore
	ttl   time.Duration
	log   *zap.Logger
}

func NewDedupPublisher(next Publisher, store dedupStore, ttl time.Duration, log *zap.Logger) *DedupPublisher {
	return &DedupPublisher{
		next:  next,
		store: store,
		ttl:   ttl,
		log:   log.With(zap.String("publisher", "dedup")),
	}
}

func dedupKey(env event.Envelope) string {
	return fmt.Sprintf("notify:sent:%s:%s:%s", env.AggregateID, env.Type, env.ID)
}

func (p *DedupPublisher) Publish(ctx context.Context, env event.Envelope) error {
	key := dedupKey(env)

	fresh, err := p.store.SetNX(ctx, key, env.OccurredAt.Unix(), p.ttl).Result()
	if err != nil {
		return fmt.Errorf("dedup check %s: %w", env.ID, err)
	}
	if !fresh {
		p.log.Info("Duplicate event skipped",
			zap.String("event_id", env.ID.String()),
			zap.String("event_type", string(env.Type)),
		)
		return nil
	}

	if err := p.next.Publish(ctx, env); err != nil {
		if delErr := p.store.Del(ctx, key).Err(); delErr != nil {
			p.log.Warn("Failed to release dedup marker", zap.Error(delErr), zap.String("key", key))
		}
		return err
	}
	return nil
}
