package repository

import (
	"context"
	"fmt"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StatusHistoryRepository interface {
	Append(ctx context.Context, h *entity.BookingStatusHistory) error
	ListByBookingID(ctx context.Context, tenantID, bookingID uuid.UUID) ([]*entity.BookingStatusHistory, error)
}

type statusHistoryRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewStatusHistoryRepository(db database.DBTX, log *zap.Logger) StatusHistoryRepository {
	return &statusHistoryRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking_status_history")),
	}
}

func (r *statusHistoryRepository) Append(ctx context.Context, h *entity.BookingStatusHistory) error {
	query := `
		INSERT INTO booking_status_history (id, tenant_id, booking_id, previous_status, new_status, actor_id, actor_role, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		h.ID,
		h.TenantID,
		h.BookingID,
		h.PreviousStatus,
		h.NewStatus,
		h.ActorID,
		h.ActorRole,
		h.Reason,
		h.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to append booking status history",
			zap.Error(err),
			zap.String("booking_id", h.BookingID.String()),
		)
		return fmt.Errorf("append status history for booking %s: %w", h.BookingID.String(), err)
	}

	return nil
}

func (r *statusHistoryRepository) ListByBookingID(ctx context.Context, tenantID, bookingID uuid.UUID) ([]*entity.BookingStatusHistory, error) {
	query := `
		SELECT id, tenant_id, booking_id, previous_status, new_status, actor_id, actor_role, reason, created_at
		FROM booking_status_history
		WHERE tenant_id = $1 AND booking_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, tenantID, bookingID)
	if err != nil {
		r.log.Error("Failed to list booking status history",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("list status history for booking %s: %w", bookingID.String(), err)
	}
	defer rows.Close()

	var out []*entity.BookingStatusHistory
	for rows.Next() {
		var h entity.BookingStatusHistory
		if err := rows.Scan(
			&h.ID,
			&h.TenantID,
			&h.BookingID,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.ActorID,
			&h.ActorRole,
			&h.Reason,
			&h.CreatedAt,
		); err != nil {
			r.log.Error("Failed to scan status history row", zap.Error(err))
			return nil, fmt.Errorf("scan status history row: %w", err)
		}
		out = append(out, &h)
	}

	return out, rows.Err()
}
