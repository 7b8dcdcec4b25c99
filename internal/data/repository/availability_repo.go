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

type AvailabilityRepository interface {
	Get(ctx context.Context, tenantID, driverID uuid.UUID) (*entity.DriverAvailability, error)
	Set(ctx context.Context, tenantID, driverID uuid.UUID, status entity.DriverStatus, at time.Time) error
}

type availabilityRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewAvailabilityRepository(db database.DBTX, log *zap.Logger) AvailabilityRepository {
	return &availabilityRepository{
		db:  db,
		log: log.With(zap.String("repository", "driver_availability")),
	}
}

func (r *availabilityRepository) Get(ctx context.Context, tenantID, driverID uuid.UUID) (*entity.DriverAvailability, error) {
	query := `
		SELECT tenant_id, driver_id, status, updated_at
		FROM driver_availability
		WHERE tenant_id = $1 AND driver_id = $2
	`

	var a entity.DriverAvailability
	err := r.db.QueryRow(ctx, query, tenantID, driverID).Scan(&a.TenantID, &a.DriverID, &a.Status, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to get driver availability",
			zap.Error(err),
			zap.String("driver_id", driverID.String()),
		)
		return nil, fmt.Errorf("get availability for driver %s: %w", driverID.String(), err)
	}

	return &a, nil
}

func (r *availabilityRepository) Set(ctx context.Context, tenantID, driverID uuid.UUID, status entity.DriverStatus, at time.Time) error {
	query := `
		INSERT INTO driver_availability (tenant_id, driver_id, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, driver_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, tenantID, driverID, status, at); err != nil {
		r.log.Error("Failed to set driver availability",
			zap.Error(err),
			zap.String("driver_id", driverID.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("set availability for driver %s to %s: %w", driverID.String(), string(status), err)
	}

	return nil
}
