package repository

import (
	"context"
	"fmt"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ActivityRepository interface {
	Append(ctx context.Context, a *entity.AssignmentActivity) error
	ListByAssignmentID(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]*entity.AssignmentActivity, error)
}

type activityRepository struct {
	db  database.DBTX
	log *zap.Logger
}

func NewActivityRepository(db database.DBTX, log *zap.Logger) ActivityRepository {
	return &activityRepository{
		db:  db,
		log: log.With(zap.String("repository", "assignment_activity")),
	}
}

func (r *activityRepository) Append(ctx context.Context, a *entity.AssignmentActivity) error {
	query := `
		INSERT INTO dispatch_assignment_activity (id, tenant_id, assignment_id, booking_id, previous_status, new_status, actor_id, actor_role, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.TenantID,
		a.AssignmentID,
		a.BookingID,
		a.PreviousStatus,
		a.NewStatus,
		a.ActorID,
		a.ActorRole,
		a.Reason,
		a.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to append assignment activity",
			zap.Error(err),
			zap.String("assignment_id", a.AssignmentID.String()),
		)
		return fmt.Errorf("append activity for assignment %s: %w", a.AssignmentID.String(), err)
	}

	return nil
}

func (r *activityRepository) ListByAssignmentID(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]*entity.AssignmentActivity, error) {
	query := `
		SELECT id, tenant_id, assignment_id, booking_id, previous_status, new_status, actor_id, actor_role, reason, created_at
		FROM dispatch_assignment_activity
		WHERE tenant_id = $1 AND assignment_id = $2
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, tenantID, assignmentID)
	if err != nil {
		r.log.Error("Failed to list assignment activity",
			zap.Error(err),
			zap.String("assignment_id", assignmentID.String()),
		)
		return nil, fmt.Errorf("list activity for assignment %s: %w", assignmentID.String(), err)
	}
	defer rows.Close()

	var out []*entity.AssignmentActivity
	for rows.Next() {
		var a entity.AssignmentActivity
		if err := rows.Scan(
			&a.ID,
			&a.TenantID,
			&a.AssignmentID,
			&a.BookingID,
			&a.PreviousStatus,
			&a.NewStatus,
			&a.ActorID,
			&a.ActorRole,
			&a.Reason,
			&a.CreatedAt,
		); err != nil {
			r.log.Error("Failed to scan assignment activity row", zap.Error(err))
			return nil, fmt.Errorf("scan assignment activity row: %w", err)
		}
		out = append(out, &a)
	}

	return out, rows.Err()
}
