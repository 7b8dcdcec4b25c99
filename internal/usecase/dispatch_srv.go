package usecase

import (
	"context"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository"
	"transport-booking/internal/dto/response"
	"transport-booking/internal/event"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type DispatchService interface {
	Offer(ctx context.Context, tenantID, bookingID, driverID uuid.UUID, vehicleID *uuid.UUID, actor entity.Actor, reason *string) (*response.OfferResponse, error)
	Accept(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error)
	Decline(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error)
	Start(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error)
	Complete(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error)

	GetAssignment(ctx context.Context, tenantID, bookingID uuid.UUID) (*response.AssignmentResponse, error)
	ListActivity(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]response.ActivityResponse, error)
	SetAvailability(ctx context.Context, tenantID, driverID uuid.UUID, status entity.DriverStatus) (*response.AvailabilityResponse, error)

	// ForceCancelForBooking overrides the booking's current assignment to
	// CANCELLED regardless of the transition table. It reports whether a
	// write happened.
	ForceCancelForBooking(ctx context.Context, tenantID, bookingID uuid.UUID, actor entity.Actor, reason *string) (bool, error)
	// ExpireOffers moves up to limit OFFERED assignments older than cutoff to
	// EXPIRED in one transaction and returns how many it touched.
	ExpireOffers(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// EligibilityChecker answers whether a driver may receive an offer.
type EligibilityChecker interface {
	DriverEligible(ctx context.Context, tenantID, driverID uuid.UUID) (bool, error)
}

// availabilityEligibility treats a driver with no availability row as eligible.
type availabilityEligibility struct {
	availability repository.AvailabilityRepository
}

func NewAvailabilityEligibility(availability repository.AvailabilityRepository) EligibilityChecker {
	return &availabilityEligibility{availability: availability}
}

func (e *availabilityEligibility) DriverEligible(ctx context.Context, tenantID, driverID uuid.UUID) (bool, error) {
	a, err := e.availability.Get(ctx, tenantID, driverID)
	if err != nil {
		return false, err
	}
	return a == nil || a.Status == entity.DriverStatusAvailable, nil
}

type driverAction struct {
	name      string
	from      entity.AssignmentStatus
	to        entity.AssignmentStatus
	event     event.Type
	driverSet entity.DriverStatus // empty leaves availability alone
	completes bool
}

var (
	acceptAction = driverAction{
		name:  "accept",
		from:  entity.AssignmentStatusOffered,
		to:    entity.AssignmentStatusAccepted,
		event: event.DriverAcceptedAssignment,
	}
	declineAction = driverAction{
		name:  "decline",
		from:  entity.AssignmentStatusOffered,
		to:    entity.AssignmentStatusDeclined,
		event: event.DriverDeclinedAssignment,
	}
	startAction = driverAction{
		name:      "start",
		from:      entity.AssignmentStatusAccepted,
		to:        entity.AssignmentStatusJobStarted,
		event:     event.DriverStartedTrip,
		driverSet: entity.DriverStatusOnJob,
	}
	completeAction = driverAction{
		name:      "complete",
		from:      entity.AssignmentStatusJobStarted,
		to:        entity.AssignmentStatusJobCompleted,
		event:     event.DriverCompletedTrip,
		driverSet: entity.DriverStatusAvailable,
		completes: true,
	}
)

type dispatchService struct {
	tx          repository.Transactor
	repo        *repository.Repository
	eligibility EligibilityChecker
	log         *zap.Logger
	now         func() time.Time
}

func NewDispatchService(tx repository.Transactor, repo *repository.Repository, eligibility EligibilityChecker, log *zap.Logger) DispatchService {
	return &dispatchService{
		tx:          tx,
		repo:        repo,
		eligibility: eligibility,
		log:         log.With(zap.String("service", "dispatch")),
		now:         time.Now,
	}
}

func (s *dispatchService) Offer(ctx context.Context, tenantID, bookingID, driverID uuid.UUID, vehicleID *uuid.UUID, actor entity.Actor, reason *string) (*response.OfferResponse, error) {
	ctx, span := tracer.Start(ctx, "dispatch.offer", trace.WithAttributes(
		attribute.String("booking.id", bookingID.String()),
		attribute.String("driver.id", driverID.String()),
	))
	defer span.End()

	if !actor.HasRole(entity.RoleDispatcher, entity.RoleAdmin) {
		return nil, fmt.Errorf("offer by %s: %w", actor.Role, ErrForbiddenRole)
	}

	eligible, err := s.eligibility.DriverEligible(ctx, tenantID, driverID)
	if err != nil {
		return nil, fmt.Errorf("check driver eligibility: %w", err)
	}
	if !eligible {
		return nil, fmt.Errorf("driver %s: %w", driverID, ErrDriverUnavailable)
	}

	var (
		current *entity.Assignment
		prior   *entity.Assignment
	)

	err = s.tx.InTx(ctx, func(repo *repository.Repository) error {
		booking, err := repo.Booking.FindByIDForUpdate(ctx, tenantID, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
		}
		if booking.Status != entity.BookingStatusConfirmed {
			return fmt.Errorf("booking %s is %s, want %s: %w", bookingID, booking.Status, entity.BookingStatusConfirmed, ErrInvalidState)
		}

		now := s.now().UTC()
		a := &entity.Assignment{
			BookingID: bookingID,
			DriverID:  driverID,
			VehicleID: vehicleID,
			Status:    entity.AssignmentStatusOffered,
			OfferedAt: now,
		}
		a.ID = uuid.New()
		a.TenantID = tenantID
		a.CreatedAt = now
		a.UpdatedAt = now

		prior, err = repo.Assignment.ReplaceForBooking(ctx, a)
		if err != nil {
			return err
		}

		var previous *entity.AssignmentStatus
		if prior != nil {
			previous = &prior.Status
		}
		if err := appendActivity(ctx, repo, a, previous, actor, reason, now); err != nil {
			return err
		}
		if err := insertAssignmentEvent(ctx, repo, a, event.DriverInvitationSent, reason, now); err != nil {
			return err
		}

		current = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("assignment_id", current.ID.String()),
		zap.String("driver_id", driverID.String()),
	}
	resp := &response.OfferResponse{Assignment: response.AssignmentToResponse(current)}
	if prior != nil {
		priorDriver := prior.DriverID.String()
		priorStatus := string(prior.Status)
		resp.SupersededDriverID = &priorDriver
		resp.SupersededStatus = &priorStatus
		fields = append(fields, zap.String("superseded_driver_id", priorDriver), zap.String("superseded_status", priorStatus))
	}
	s.log.Info("Driver offered", fields...)

	return resp, nil
}

func (s *dispatchService) Accept(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error) {
	return s.apply(ctx, tenantID, assignmentID, actor, reason, acceptAction)
}

func (s *dispatchService) Decline(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error) {
	return s.apply(ctx, tenantID, assignmentID, actor, reason, declineAction)
}

func (s *dispatchService) Start(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error) {
	return s.apply(ctx, tenantID, assignmentID, actor, reason, startAction)
}

func (s *dispatchService) Complete(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error) {
	return s.apply(ctx, tenantID, assignmentID, actor, reason, completeAction)
}

func (s *dispatchService) apply(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string, act driverAction) (*response.AssignmentResponse, error) {
	ctx, span := tracer.Start(ctx, "dispatch."+act.name, trace.WithAttributes(
		attribute.String("assignment.id", assignmentID.String()),
	))
	defer span.End()

	if actor.Role != entity.RoleDriver {
		return nil, fmt.Errorf("%s by %s: %w", act.name, actor.Role, ErrForbiddenRole)
	}

	var updated *entity.Assignment
	err := s.tx.InTx(ctx, func(repo *repository.Repository) error {
		a, err := repo.Assignment.FindByIDForUpdate(ctx, tenantID, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
		}
		if a.Status != act.from {
			return fmt.Errorf("%s assignment %s in %s: %w", act.name, assignmentID, a.Status, ErrInvalidState)
		}
		if actor.ID != a.DriverID.String() {
			return fmt.Errorf("assignment %s belongs to another driver: %w", assignmentID, ErrDriverMismatch)
		}

		now := s.now().UTC()
		var completedAt *time.Time
		if act.completes {
			completedAt = &now
		}
		if err := repo.Assignment.UpdateStatus(ctx, tenantID, assignmentID, act.to, completedAt, now); err != nil {
			return err
		}

		previous := a.Status
		a.Status = act.to
		a.UpdatedAt = now
		if completedAt != nil {
			a.CompletedAt = completedAt
		}

		if err := appendActivity(ctx, repo, a, &previous, actor, reason, now); err != nil {
			return err
		}
		if act.driverSet != "" {
			if err := repo.Availability.Set(ctx, tenantID, a.DriverID, act.driverSet, now); err != nil {
				return err
			}
		}
		if err := insertAssignmentEvent(ctx, repo, a, act.event, reason, now); err != nil {
			return err
		}

		updated = a
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Info("Assignment updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("assignment_id", assignmentID.String()),
		zap.String("booking_id", updated.BookingID.String()),
		zap.String("from", string(act.from)),
		zap.String("to", string(act.to)),
	)

	return response.AssignmentToResponse(updated), nil
}

func (s *dispatchService) ForceCancelForBooking(ctx context.Context, tenantID, bookingID uuid.UUID, actor entity.Actor, reason *string) (bool, error) {
	var (
		cancelled bool
		previous  entity.AssignmentStatus
		a         *entity.Assignment
	)

	err := s.tx.InTx(ctx, func(repo *repository.Repository) error {
		var err error
		a, err = repo.Assignment.FindByBookingIDForUpdate(ctx, tenantID, bookingID)
		if err != nil {
			return err
		}
		if a == nil {
			return nil
		}
		if a.Status == entity.AssignmentStatusCancelled || a.Status == entity.AssignmentStatusJobCompleted {
			return nil
		}

		now := s.now().UTC()
		previous = a.Status
		if err := repo.Assignment.UpdateStatus(ctx, tenantID, a.ID, entity.AssignmentStatusCancelled, nil, now); err != nil {
			return err
		}
		a.Status = entity.AssignmentStatusCancelled
		a.UpdatedAt = now

		if err := appendActivity(ctx, repo, a, &previous, actor, reason, now); err != nil {
			return err
		}

		// A driver holding the job goes back into the pool.
		if previous == entity.AssignmentStatusAccepted || previous == entity.AssignmentStatusJobStarted {
			if err := repo.Availability.Set(ctx, tenantID, a.DriverID, entity.DriverStatusAvailable, now); err != nil {
				return err
			}
		}

		cancelled = true
		return nil
	})
	if err != nil {
		s.log.Error("Failed to force cancel assignment",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return false, err
	}

	if cancelled {
		s.log.Info("Assignment force cancelled",
			zap.String("tenant_id", tenantID.String()),
			zap.String("booking_id", bookingID.String()),
			zap.String("assignment_id", a.ID.String()),
			zap.String("from", string(previous)),
		)
	}
	return cancelled, nil
}

var offerSweeperActor = entity.SystemActor("offer-sweeper")

func (s *dispatchService) ExpireOffers(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	reason := "offer timed out"
	var expired []*entity.Assignment

	err := s.tx.InTx(ctx, func(repo *repository.Repository) error {
		offers, err := repo.Assignment.ClaimExpiredOffers(ctx, cutoff, limit)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, a := range offers {
			if err := repo.Assignment.UpdateStatus(ctx, a.TenantID, a.ID, entity.AssignmentStatusExpired, nil, now); err != nil {
				return err
			}
			previous := a.Status
			a.Status = entity.AssignmentStatusExpired
			a.UpdatedAt = now

			if err := appendActivity(ctx, repo, a, &previous, offerSweeperActor, &reason, now); err != nil {
				return err
			}
			if err := insertAssignmentEvent(ctx, repo, a, event.AssignmentExpired, &reason, now); err != nil {
				return err
			}
		}

		expired = offers
		return nil
	})
	if err != nil {
		s.log.Error("Failed to expire offers", zap.Error(err))
		return 0, err
	}

	for _, a := range expired {
		s.log.Info("Offer expired",
			zap.String("tenant_id", a.TenantID.String()),
			zap.String("assignment_id", a.ID.String()),
			zap.String("booking_id", a.BookingID.String()),
			zap.String("driver_id", a.DriverID.String()),
		)
	}
	return len(expired), nil
}

func (s *dispatchService) GetAssignment(ctx context.Context, tenantID, bookingID uuid.UUID) (*response.AssignmentResponse, error) {
	a, err := s.repo.Assignment.FindByBookingID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("assignment for booking %s: %w", bookingID, ErrNotFound)
	}
	return response.AssignmentToResponse(a), nil
}

func (s *dispatchService) ListActivity(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]response.ActivityResponse, error) {
	a, err := s.repo.Assignment.FindByID(ctx, tenantID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}

	rows, err := s.repo.Activity.ListByAssignmentID(ctx, tenantID, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list assignment activity: %w", err)
	}

	out := make([]response.ActivityResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, response.ActivityToResponse(row))
	}
	return out, nil
}

func (s *dispatchService) SetAvailability(ctx context.Context, tenantID, driverID uuid.UUID, status entity.DriverStatus) (*response.AvailabilityResponse, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("driver status %q: %w", status, ErrValidation)
	}

	now := s.now().UTC()
	if err := s.repo.Availability.Set(ctx, tenantID, driverID, status, now); err != nil {
		return nil, fmt.Errorf("set availability: %w", err)
	}

	s.log.Info("Driver availability set",
		zap.String("tenant_id", tenantID.String()),
		zap.String("driver_id", driverID.String()),
		zap.String("status", string(status)),
	)

	return &response.AvailabilityResponse{DriverID: driverID.String(), Status: status, UpdatedAt: now}, nil
}

func appendActivity(ctx context.Context, repo *repository.Repository, a *entity.Assignment, previous *entity.AssignmentStatus, actor entity.Actor, reason *string, now time.Time) error {
	row := &entity.AssignmentActivity{
		AssignmentID:   a.ID,
		BookingID:      a.BookingID,
		PreviousStatus: previous,
		NewStatus:      a.Status,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		Reason:         reason,
	}
	row.ID = uuid.New()
	row.TenantID = a.TenantID
	row.CreatedAt = now
	return repo.Activity.Append(ctx, row)
}

func insertAssignmentEvent(ctx context.Context, repo *repository.Repository, a *entity.Assignment, t event.Type, reason *string, now time.Time) error {
	evt, err := newOutboxEvent(a.TenantID, entity.AggregateAssignment, a.ID, event.AssignmentPayload{
		Type:         t,
		TenantID:     a.TenantID,
		BookingID:    a.BookingID,
		AssignmentID: a.ID,
		DriverID:     a.DriverID,
		VehicleID:    a.VehicleID,
		Reason:       reason,
		OccurredAt:   now,
	}, now)
	if err != nil {
		return err
	}
	return repo.Outbox.Insert(ctx, evt)
}
