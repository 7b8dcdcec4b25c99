package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Booking, error)
	// FindByIDForUpdate row-locks the booking until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Booking, error)
	// UpdateStatusIfMatch writes to only when the stored status still equals
	// from. It reports false when no row matched.
	UpdateStatusIfMatch(ctx context.Context, tenantID, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error)
}

type bookingRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewBookingRepository(db database.DBTX, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

// Must match the unique index in 000001_init.up.sql.
const bookingReferenceConstraint = "ux_bookings_tenant_reference"

const bookingColumns = `id, tenant_id, booking_reference, status, payment_status, customer_name, customer_email,
	customer_phone, pickup_address, dropoff_address, pickup_at, total_price_minor, currency,
	client_request_id, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.TenantID,
		booking.Reference,
		booking.Status,
		booking.PaymentStatus,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.CustomerPhone,
		booking.PickupAddress,
		booking.DropoffAddress,
		booking.PickupAt,
		booking.TotalPriceMinor,
		booking.Currency,
		booking.ClientRequestID,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		if constraint, ok := database.UniqueViolationConstraint(err); ok {
			if constraint == bookingReferenceConstraint {
				return fmt.Errorf("create booking %s: %w", booking.Reference, ErrDuplicateReference)
			}
			return fmt.Errorf("create booking %s: %w", booking.Reference, ErrDuplicateKey)
		}
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("tenant_id", booking.TenantID.String()),
			zap.String("booking_reference", booking.Reference),
		)
		return fmt.Errorf("create booking %s: %w", booking.Reference, err)
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2`
	return r.findOne(ctx, query, tenantID, id)
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.findOne(ctx, query, tenantID, id)
}

func (r *bookingRepository) findOne(ctx context.Context, query string, tenantID, id uuid.UUID) (*entity.Booking, error) {
	var booking entity.Booking
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&booking.ID,
		&booking.TenantID,
		&booking.Reference,
		&booking.Status,
		&booking.PaymentStatus,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.PickupAddress,
		&booking.DropoffAddress,
		&booking.PickupAt,
		&booking.TotalPriceMinor,
		&booking.Currency,
		&booking.ClientRequestID,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("tenant_id", tenantID.String()),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return &booking, nil
}

func (r *bookingRepository) UpdateStatusIfMatch(ctx context.Context, tenantID, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`

	result, err := r.db.Exec(ctx, query, tenantID, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return false, fmt.Errorf("update booking %s status to %s: %w", id.String(), string(to), err)
	}

	return result.RowsAffected() == 1, nil
}
