package repository

import (
	"context"
	"errors"
	"fmt"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type IdempotencyRepository interface {
	// FindBookingID returns uuid.Nil, false when the key was never seen.
	FindBookingID(ctx context.Context, tenantID uuid.UUID, clientRequestID string) (uuid.UUID, bool, error)
	Create(ctx context.Context, record *entity.IdempotencyRecord) error
}

type idempotencyRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewIdempotencyRepository(db database.DBTX, log *zap.Logger) IdempotencyRepository {
	return &idempotencyRepository{
		db:  db,
		log: log.With(zap.String("repository", "idempotency")),
	}
}

func (r *idempotencyRepository) FindBookingID(ctx context.Context, tenantID uuid.UUID, clientRequestID string) (uuid.UUID, bool, error) {
	query := `
		SELECT booking_id
		FROM booking_idempotency
		WHERE tenant_id = $1 AND client_request_id = $2
	`

	var bookingID uuid.UUID
	err := r.db.QueryRow(ctx, query, tenantID, clientRequestID).Scan(&bookingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		r.log.Error("Failed to look up idempotency key",
			zap.Error(err),
			zap.String("tenant_id", tenantID.String()),
			zap.String("client_request_id", clientRequestID),
		)
		return uuid.Nil, false, fmt.Errorf("find idempotency key %s: %w", clientRequestID, err)
	}

	return bookingID, true, nil
}

func (r *idempotencyRepository) Create(ctx context.Context, record *entity.IdempotencyRecord) error {
	query := `
		INSERT INTO booking_idempotency (tenant_id, client_request_id, booking_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, record.TenantID, record.ClientRequestID, record.BookingID, record.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("create idempotency key %s: %w", record.ClientRequestID, ErrDuplicateKey)
		}
		r.log.Error("Failed to create idempotency key",
			zap.Error(err),
			zap.String("tenant_id", record.TenantID.String()),
			zap.String("client_request_id", record.ClientRequestID),
		)
		return fmt.Errorf("create idempotency key %s: %w", record.ClientRequestID, err)
	}

	return nil
}
