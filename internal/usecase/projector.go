package usecase

import (
	"context"
	"fmt"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/event"

	"go.uber.org/zap"
)

// ProjectionHook observes projector failures that are handled without
// propagating to the relay.
type ProjectionHook interface {
	ProjectionFailed(ctx context.Context, env event.Envelope, err error)
}

type logHook struct {
	log *zap.Logger
}

// NewLogHook logs swallowed projection failures at warn level.
func NewLogHook(log *zap.Logger) ProjectionHook {
	return &logHook{log: log}
}

func (h *logHook) ProjectionFailed(_ context.Context, env event.Envelope, err error) {
	h.log.Warn("Projection skipped",
		zap.Error(err),
		zap.String("event_id", env.ID.String()),
		zap.String("event_type", string(env.Type)),
		zap.String("tenant_id", env.TenantID.String()),
		zap.String("aggregate_id", env.AggregateID.String()),
	)
}

var projectorActor = entity.SystemActor("projector")

// Projector keeps bookings and assignments consistent by reacting to each
// other's published events.
type Projector struct {
	booking  BookingService
	dispatch DispatchService
	hook     ProjectionHook
	log      *zap.Logger
}

func NewProjector(booking BookingService, dispatch DispatchService, hook ProjectionHook, log *zap.Logger) *Projector {
	log = log.With(zap.String("service", "projector"))
	if hook == nil {
		hook = NewLogHook(log)
	}
	return &Projector{
		booking:  booking,
		dispatch: dispatch,
		hook:     hook,
		log:      log,
	}
}

// Register subscribes the projector to r.
func (p *Projector) Register(r *event.Registry) {
	event.On(r, event.DriverAcceptedAssignment, p.onDriverAccepted)
	event.On(r, event.DriverStartedTrip, p.onDriverStarted)
	event.On(r, event.BookingCancelled, p.onBookingCancelled)
}

func (p *Projector) onDriverAccepted(ctx context.Context, env event.Envelope, payload event.AssignmentPayload) error {
	return p.advanceBooking(ctx, env, payload, entity.BookingStatusAssigned)
}

func (p *Projector) onDriverStarted(ctx context.Context, env event.Envelope, payload event.AssignmentPayload) error {
	return p.advanceBooking(ctx, env, payload, entity.BookingStatusInProgress)
}

// advanceBooking moves the booking on behalf of the driver named in payload,
// but only while that assignment is still the booking's current one. A
// re-offer between the driver's action and its projection supersedes it.
func (p *Projector) advanceBooking(ctx context.Context, env event.Envelope, payload event.AssignmentPayload, to entity.BookingStatus) error {
	current, err := p.dispatch.GetAssignment(ctx, payload.TenantID, payload.BookingID)
	if err != nil {
		return p.handled(ctx, env, err)
	}
	if current.ID != payload.AssignmentID.String() || current.DriverID != payload.DriverID.String() {
		return p.handled(ctx, env, fmt.Errorf("assignment %s superseded by %s: %w",
			payload.AssignmentID, current.ID, ErrInvalidState))
	}

	driver := entity.Actor{ID: payload.DriverID.String(), Role: entity.RoleDriver}
	_, err = p.booking.Transition(ctx, payload.TenantID, payload.BookingID, to, driver, nil)
	return p.handled(ctx, env, err)
}

func (p *Projector) onBookingCancelled(ctx context.Context, env event.Envelope, payload event.BookingCancelledPayload) error {
	reason := "booking cancelled by " + payload.CancelledBy
	_, err := p.dispatch.ForceCancelForBooking(ctx, payload.TenantID, payload.BookingID, projectorActor, &reason)
	return p.handled(ctx, env, err)
}

// handled swallows business rule conflicts. Infrastructure errors go back to
// the relay so the event is retried.
func (p *Projector) handled(ctx context.Context, env event.Envelope, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		p.hook.ProjectionFailed(ctx, env, err)
		return nil
	}
	return err
}
