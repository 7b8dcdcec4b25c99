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

type AssignmentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error)
	FindByBookingID(ctx context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error)
	FindByBookingIDForUpdate(ctx context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error)

	// ReplaceForBooking makes a the current assignment of its booking. An
	// existing row is overwritten in place and its previous state returned;
	// prior is nil when the booking had no assignment. a.ID and a.CreatedAt
	// are set to the stored row's values.
	ReplaceForBooking(ctx context.Context, a *entity.Assignment) (prior *entity.Assignment, err error)
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status entity.AssignmentStatus, completedAt *time.Time, at time.Time) error

	// ClaimExpiredOffers locks OFFERED rows offered before cutoff, skipping
	// rows held by other sweepers. Must run inside a transaction.
	ClaimExpiredOffers(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Assignment, error)
}

type assignmentRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewAssignmentRepository(db database.DBTX, log *zap.Logger) AssignmentRepository {
	return &assignmentRepository{
		db:  db,
		log: log.With(zap.String("repository", "assignment")),
	}
}

const assignmentColumns = `id, tenant_id, booking_id, driver_id, vehicle_id, status, offered_at, completed_at, created_at, updated_at`

func (r *assignmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM dispatch_assignments WHERE tenant_id = $1 AND id = $2`
	return r.findOne(ctx, query, tenantID, id)
}

func (r *assignmentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM dispatch_assignments WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.findOne(ctx, query, tenantID, id)
}

func (r *assignmentRepository) FindByBookingID(ctx context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM dispatch_assignments WHERE tenant_id = $1 AND booking_id = $2`
	return r.findOne(ctx, query, tenantID, bookingID)
}

func (r *assignmentRepository) FindByBookingIDForUpdate(ctx context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM dispatch_assignments WHERE tenant_id = $1 AND booking_id = $2 FOR UPDATE`
	return r.findOne(ctx, query, tenantID, bookingID)
}

func (r *assignmentRepository) findOne(ctx context.Context, query string, tenantID, key uuid.UUID) (*entity.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx, query, tenantID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find assignment",
			zap.Error(err),
			zap.String("tenant_id", tenantID.String()),
			zap.String("key", key.String()),
		)
		return nil, fmt.Errorf("find assignment %s: %w", key.String(), err)
	}
	return a, nil
}

func (r *assignmentRepository) ReplaceForBooking(ctx context.Context, a *entity.Assignment) (*entity.Assignment, error) {
	prior, err := r.FindByBookingIDForUpdate(ctx, a.TenantID, a.BookingID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO dispatch_assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
		ON CONFLICT (tenant_id, booking_id) DO UPDATE
		SET driver_id = EXCLUDED.driver_id,
		    vehicle_id = EXCLUDED.vehicle_id,
		    status = EXCLUDED.status,
		    offered_at = EXCLUDED.offered_at,
		    completed_at = NULL,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err = r.db.QueryRow(ctx, query,
		a.ID,
		a.TenantID,
		a.BookingID,
		a.DriverID,
		a.VehicleID,
		a.Status,
		a.OfferedAt,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		r.log.Error("Failed to replace assignment",
			zap.Error(err),
			zap.String("booking_id", a.BookingID.String()),
			zap.String("driver_id", a.DriverID.String()),
		)
		return nil, fmt.Errorf("replace assignment for booking %s: %w", a.BookingID.String(), err)
	}
	a.CompletedAt = nil

	return prior, nil
}

func (r *assignmentRepository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status entity.AssignmentStatus, completedAt *time.Time, at time.Time) error {
	query := `
		UPDATE dispatch_assignments
		SET status = $3, completed_at = COALESCE($4, completed_at), updated_at = $5
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := r.db.Exec(ctx, query, tenantID, id, status, completedAt, at)
	if err != nil {
		r.log.Error("Failed to update assignment status",
			zap.Error(err),
			zap.String("assignment_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update assignment %s status to %s: %w", id.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("assignment %s not found", id.String())
	}

	return nil
}

func (r *assignmentRepository) ClaimExpiredOffers(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM dispatch_assignments
		WHERE status = 'OFFERED' AND offered_at < $1
		ORDER BY offered_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := r.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.log.Error("Failed to select expired offers", zap.Error(err))
		return nil, fmt.Errorf("select expired offers: %w", err)
	}
	defer rows.Close()

	var out []*entity.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			r.log.Error("Failed to scan assignment row", zap.Error(err))
			return nil, fmt.Errorf("scan assignment row: %w", err)
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*entity.Assignment, error) {
	var a entity.Assignment
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.BookingID,
		&a.DriverID,
		&a.VehicleID,
		&a.Status,
		&a.OfferedAt,
		&a.CompletedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
