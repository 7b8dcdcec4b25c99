package worker

import (
	"context"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository"
	"transport-booking/internal/event"
	"transport-booking/internal/notify"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Dispatcher fans a published envelope out to in-process subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, env event.Envelope) error
}

type TickResult struct {
	Recovered int64
	Claimed   int
	Published int
	Requeued  int
	Failed    int
}

// Relay delivers outbox rows at least once.
type Relay struct {
	tx         repository.Transactor
	outbox     repository.OutboxRepository
	publisher  notify.Publisher
	dispatcher Dispatcher
	cfg        utils.RelayConfig
	log        *zap.Logger
	now        func() time.Time
}

func NewRelay(tx repository.Transactor, repo *repository.Repository, publisher notify.Publisher, dispatcher Dispatcher, cfg utils.RelayConfig, log *zap.Logger) *Relay {
	return &Relay{
		tx:         tx,
		outbox:     repo.Outbox,
		publisher:  publisher,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With(zap.String("worker", "relay")),
		now:        time.Now,
	}
}

// Run recovers stuck rows once and then ticks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	r.log.Info("Relay started",
		zap.Duration("interval", r.cfg.Interval),
		zap.Int("batch_size", r.cfg.BatchSize),
	)
	if _, err := r.RecoverStuck(ctx); err != nil {
		r.log.Error("Initial stuck event recovery failed", zap.Error(err))
	}

	runEvery(ctx, r.cfg.Interval, r.log, func(ctx context.Context) {
		if _, err := r.Tick(ctx); err != nil {
			r.log.Error("Relay tick failed", zap.Error(err))
		}
	})
}

// RecoverStuck returns PROCESSING rows claimed longer ago than StuckAfter to
// PENDING. They belong to a relay that died between claim and completion.
func (r *Relay) RecoverStuck(ctx context.Context) (int64, error) {
	n, err := r.outbox.ResetStuck(ctx, r.now().UTC().Add(-r.cfg.StuckAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Warn("Recovered stuck outbox events", zap.Int64("count", n))
	}
	return n, nil
}

func (r *Relay) Tick(ctx context.Context) (TickResult, error) {
	ctx, span := tracer.Start(ctx, "outbox.relay.tick")
	defer span.End()

	var res TickResult

	recovered, err := r.RecoverStuck(ctx)
	if err != nil {
		r.log.Error("Stuck event recovery failed", zap.Error(err))
	}
	res.Recovered = recovered

	var claimed []*entity.OutboxEvent
	err = r.tx.InTx(ctx, func(repo *repository.Repository) error {
		var err error
		claimed, err = repo.Outbox.ClaimPending(ctx, r.cfg.BatchSize, r.now().UTC())
		return err
	})
	if err != nil {
		span.RecordError(err)
		return res, fmt.Errorf("claim outbox events: %w", err)
	}
	res.Claimed = len(claimed)

	for _, evt := range claimed {
		switch r.deliver(ctx, evt) {
		case entity.OutboxStatusPublished:
			res.Published++
		case entity.OutboxStatusPending:
			res.Requeued++
		case entity.OutboxStatusFailed:
			res.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("outbox.claimed", res.Claimed),
		attribute.Int("outbox.published", res.Published),
		attribute.Int("outbox.requeued", res.Requeued),
		attribute.Int("outbox.failed", res.Failed),
	)
	if res.Claimed > 0 {
		r.log.Info("Relay tick",
			zap.Int("claimed", res.Claimed),
			zap.Int("published", res.Published),
			zap.Int("requeued", res.Requeued),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

// deliver publishes one claimed row and records the outcome on it. It
// returns the status the row was moved to, or "" if recording failed.
func (r *Relay) deliver(ctx context.Context, evt *entity.OutboxEvent) entity.OutboxStatus {
	ctx, span := tracer.Start(ctx, "outbox.relay.deliver", trace.WithAttributes(
		attribute.String("event.id", evt.ID.String()),
		attribute.String("event.type", evt.EventType),
	))
	defer span.End()

	env := event.EnvelopeOf(evt)
	err := r.publisher.Publish(ctx, env)
	if err == nil {
		err = r.dispatcher.Dispatch(ctx, env)
	}

	now := r.now().UTC()
	fields := []zap.Field{
		zap.String("event_id", evt.ID.String()),
		zap.String("event_type", evt.EventType),
		zap.String("tenant_id", evt.TenantID.String()),
	}

	if err == nil {
		if markErr := r.outbox.MarkPublished(ctx, evt.ID, now); markErr != nil {
			r.log.Error("Failed to mark event published", append(fields, zap.Error(markErr))...)
			return ""
		}
		return entity.OutboxStatusPublished
	}

	span.RecordError(err)
	retries := evt.RetryCount + 1
	msg := fmt.Errorf("%w: %v", usecase.ErrPublishFailure, err).Error()
	fields = append(fields, zap.Error(err), zap.Int("retry_count", retries))

	if retries >= r.cfg.MaxRetries {
		if markErr := r.outbox.MarkFailed(ctx, evt.ID, retries, msg); markErr != nil {
			r.log.Error("Failed to mark event failed", append(fields, zap.NamedError("mark_error", markErr))...)
			return ""
		}
		r.log.Error("Outbox event exhausted retries", fields...)
		return entity.OutboxStatusFailed
	}

	next := now.Add(r.backoff(retries))
	if markErr := r.outbox.Requeue(ctx, evt.ID, retries, next, msg); markErr != nil {
		r.log.Error("Failed to requeue event", append(fields, zap.NamedError("mark_error", markErr))...)
		return ""
	}
	r.log.Warn("Outbox event requeued", append(fields, zap.Time("available_at", next))...)
	return entity.OutboxStatusPending
}

// backoff doubles from BackoffBase per retry, capped at BackoffMax.
func (r *Relay) backoff(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	d := r.cfg.BackoffBase
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= r.cfg.BackoffMax || d <= 0 {
			return r.cfg.BackoffMax
		}
	}
	if d > r.cfg.BackoffMax {
		return r.cfg.BackoffMax
	}
	return d
}
