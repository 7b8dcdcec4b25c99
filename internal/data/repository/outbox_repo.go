package repository

import (
	"context"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OutboxRepository interface {
	Insert(ctx context.Context, evt *entity.OutboxEvent) error

	// ClaimPending locks up to limit due PENDING rows, skipping rows held by
	// other relays, and flips them to PROCESSING. Must run inside a transaction.
	ClaimPending(ctx context.Context, limit int, now time.Time) ([]*entity.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	Requeue(ctx context.Context, id uuid.UUID, retryCount int, availableAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string) error
	// ResetStuck returns PROCESSING rows claimed before olderThan to PENDING.
	ResetStuck(ctx context.Context, olderThan time.Time) (int64, error)

	ListFailed(ctx context.Context, limit int) ([]*entity.OutboxEvent, error)
	ListByAggregate(ctx context.Context, tenantID, aggregateID uuid.UUID) ([]*entity.OutboxEvent, error)
}

type outboxRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewOutboxRepository(db database.DBTX, log *zap.Logger) OutboxRepository {
	return &outboxRepository{
		db:  db,
		log: log.With(zap.String("repository", "outbox")),
	}
}

const outboxColumns = `id, tenant_id, aggregate_type, aggregate_id, event_type, schema_version, payload, status,
	retry_count, last_error, available_at, claimed_at, created_at, published_at`

func (r *outboxRepository) Insert(ctx context.Context, evt *entity.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, tenant_id, aggregate_type, aggregate_id, event_type, schema_version, payload, status, retry_count, available_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		evt.ID,
		evt.TenantID,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		evt.SchemaVersion,
		evt.Payload,
		evt.Status,
		evt.RetryCount,
		evt.AvailableAt,
		evt.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert outbox event",
			zap.Error(err),
			zap.String("event_type", evt.EventType),
			zap.String("aggregate_id", evt.AggregateID.String()),
		)
		return fmt.Errorf("insert outbox event %s: %w", evt.EventType, err)
	}

	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, now time.Time) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = 'PENDING' AND available_at <= $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		r.log.Error("Failed to select pending outbox events", zap.Error(err))
		return nil, fmt.Errorf("select pending outbox events: %w", err)
	}
	events, err := scanOutboxRows(rows)
	if err != nil {
		r.log.Error("Failed to scan outbox row", zap.Error(err))
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(events))
	for i, evt := range events {
		ids[i] = evt.ID
	}

	update := `UPDATE outbox_events SET status = 'PROCESSING', claimed_at = $2 WHERE id = ANY($1)`
	if _, err := r.db.Exec(ctx, update, ids, now); err != nil {
		r.log.Error("Failed to mark outbox events processing", zap.Error(err), zap.Int("count", len(ids)))
		return nil, fmt.Errorf("mark outbox events processing: %w", err)
	}

	for _, evt := range events {
		claimedAt := now
		evt.Status = entity.OutboxStatusProcessing
		evt.ClaimedAt = &claimedAt
	}

	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET status = 'PUBLISHED', published_at = $2, last_error = NULL
		WHERE id = $1 AND status = 'PROCESSING'
	`
	return r.execStatus(ctx, "mark published", id, query, id, at)
}

func (r *outboxRepository) Requeue(ctx context.Context, id uuid.UUID, retryCount int, availableAt time.Time, lastError string) error {
	query := `
		UPDATE outbox_events
		SET status = 'PENDING', retry_count = $2, available_at = $3, last_error = $4, claimed_at = NULL
		WHERE id = $1 AND status = 'PROCESSING'
	`
	return r.execStatus(ctx, "requeue", id, query, id, retryCount, availableAt, lastError)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, lastError string) error {
	query := `
		UPDATE outbox_events
		SET status = 'FAILED', retry_count = $2, last_error = $3
		WHERE id = $1 AND status = 'PROCESSING'
	`
	return r.execStatus(ctx, "mark failed", id, query, id, retryCount, lastError)
}

func (r *outboxRepository) execStatus(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op+" outbox event",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return fmt.Errorf("%s outbox event %s: %w", op, id.String(), err)
	}
	if result.RowsAffected() == 0 {
		// Another relay already recovered and finished the row.
		r.log.Warn("Outbox event no longer processing",
			zap.String("event_id", id.String()),
			zap.String("operation", op),
		)
	}
	return nil
}

func (r *outboxRepository) ResetStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE outbox_events
		SET status = 'PENDING', claimed_at = NULL
		WHERE status = 'PROCESSING' AND claimed_at < $1
	`

	result, err := r.db.Exec(ctx, query, olderThan)
	if err != nil {
		r.log.Error("Failed to reset stuck outbox events", zap.Error(err))
		return 0, fmt.Errorf("reset stuck outbox events: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *outboxRepository) ListFailed(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = 'FAILED'
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to list failed outbox events", zap.Error(err))
		return nil, fmt.Errorf("list failed outbox events: %w", err)
	}
	return scanOutboxRows(rows)
}

func (r *outboxRepository) ListByAggregate(ctx context.Context, tenantID, aggregateID uuid.UUID) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE tenant_id = $1 AND aggregate_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, tenantID, aggregateID)
	if err != nil {
		r.log.Error("Failed to list outbox events by aggregate",
			zap.Error(err),
			zap.String("aggregate_id", aggregateID.String()),
		)
		return nil, fmt.Errorf("list outbox events for aggregate %s: %w", aggregateID.String(), err)
	}
	return scanOutboxRows(rows)
}

func scanOutboxRows(rows pgx.Rows) ([]*entity.OutboxEvent, error) {
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var evt entity.OutboxEvent
		if err := rows.Scan(
			&evt.ID,
			&evt.TenantID,
			&evt.AggregateType,
			&evt.AggregateID,
			&evt.EventType,
			&evt.SchemaVersion,
			&evt.Payload,
			&evt.Status,
			&evt.RetryCount,
			&evt.LastError,
			&evt.AvailableAt,
			&evt.ClaimedAt,
			&evt.CreatedAt,
			&evt.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}

	return events, nil
}
