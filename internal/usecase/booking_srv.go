package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository"
	"transport-booking/internal/dto/request"
	"transport-booking/internal/dto/response"
	"transport-booking/internal/event"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type BookingService interface {
	CreateBooking(ctx context.Context, tenantID uuid.UUID, req *request.CreateBookingRequest) (*response.CreateBookingResponse, error)
	Transition(ctx context.Context, tenantID, bookingID uuid.UUID, to entity.BookingStatus, actor entity.Actor, reason *string) (*response.BookingResponse, error)

	GetBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*response.BookingResponse, error)
	ListHistory(ctx context.Context, tenantID, bookingID uuid.UUID) ([]response.StatusHistoryResponse, error)
}

// maxReferenceAttempts bounds how often CreateBooking draws a new reference
// after a collision inside the tenant.
const maxReferenceAttempts = 5

type bookingService struct {
	tx        repository.Transactor
	repo      *repository.Repository // reads outside a transaction
	log       *zap.Logger
	now       func() time.Time
	reference func(now time.Time) string
}

func NewBookingService(tx repository.Transactor, repo *repository.Repository, log *zap.Logger) BookingService {
	return &bookingService{
		tx:   tx,
		repo: repo,
		log:  log.With(zap.String("service", "booking")),
		now:  time.Now,

		reference: utils.GenerateBookingReference,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, tenantID uuid.UUID, req *request.CreateBookingRequest) (*response.CreateBookingResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Create booking validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	key := utils.GenerateUUIDString()
	if req.ClientRequestID != nil && *req.ClientRequestID != "" {
		key = *req.ClientRequestID
	}

	// Safe retry: a known key returns the original booking untouched.
	if existing, found, err := s.repo.Idempotency.FindBookingID(ctx, tenantID, key); err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	} else if found {
		s.log.Info("Booking request replayed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("client_request_id", key),
			zap.String("booking_id", existing.String()),
		)
		return &response.CreateBookingResponse{BookingID: existing.String(), Created: false}, nil
	}

	now := s.now().UTC()
	booking := &entity.Booking{
		Reference:       s.reference(now),
		Status:          entity.InitialBookingStatus,
		PaymentStatus:   entity.PaymentStatusUnpaid,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		PickupAddress:   req.PickupAddress,
		DropoffAddress:  req.DropoffAddress,
		PickupAt:        req.PickupAt.UTC(),
		TotalPriceMinor: req.TotalPriceMinor,
		Currency:        req.Currency,
		ClientRequestID: &key,
	}
	booking.ID = utils.GenerateUUID()
	booking.TenantID = tenantID
	booking.CreatedAt = now
	booking.UpdatedAt = now

	var err error
	for attempt := 1; ; attempt++ {
		err = s.insertBooking(ctx, booking, key, now)
		if !errors.Is(err, repository.ErrDuplicateReference) || attempt == maxReferenceAttempts {
			break
		}
		s.log.Warn("Booking reference collision, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.String("booking_reference", booking.Reference),
			zap.Int("attempt", attempt),
		)
		booking.Reference = s.reference(now)
	}

	if errors.Is(err, repository.ErrDuplicateKey) {
		// Lost the race on the same key; the winner's booking is the answer.
		existing, found, lerr := s.repo.Idempotency.FindBookingID(ctx, tenantID, key)
		if lerr != nil {
			return nil, fmt.Errorf("lookup idempotency key after conflict: %w", lerr)
		}
		if found {
			s.log.Info("Concurrent booking request resolved to existing booking",
				zap.String("tenant_id", tenantID.String()),
				zap.String("client_request_id", key),
				zap.String("booking_id", existing.String()),
			)
			return &response.CreateBookingResponse{BookingID: existing.String(), Created: false}, nil
		}
	}
	if err != nil {
		s.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("tenant_id", tenantID.String()),
		)
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("booking_reference", booking.Reference),
	)

	return &response.CreateBookingResponse{BookingID: booking.ID.String(), Created: true}, nil
}

// insertBooking writes the booking, its idempotency row and the
// BookingCreated event in one transaction.
func (s *bookingService) insertBooking(ctx context.Context, booking *entity.Booking, key string, now time.Time) error {
	return s.tx.InTx(ctx, func(repo *repository.Repository) error {
		if err := repo.Booking.Create(ctx, booking); err != nil {
			return err
		}

		if err := repo.Idempotency.Create(ctx, &entity.IdempotencyRecord{
			TenantID:        booking.TenantID,
			ClientRequestID: key,
			BookingID:       booking.ID,
			CreatedAt:       now,
		}); err != nil {
			return err
		}

		evt, err := newOutboxEvent(booking.TenantID, entity.AggregateBooking, booking.ID, event.BookingCreatedPayload{
			BookingID:        booking.ID,
			TenantID:         booking.TenantID,
			BookingReference: booking.Reference,
			CustomerName:     booking.CustomerName,
			PickupAddress:    booking.PickupAddress,
			DropoffAddress:   booking.DropoffAddress,
			PickupAtUTC:      booking.PickupAt,
			TotalPriceMinor:  booking.TotalPriceMinor,
			Currency:         booking.Currency,
		}, now)
		if err != nil {
			return err
		}
		return repo.Outbox.Insert(ctx, evt)
	})
}

// Transition moves a booking along one edge of the status table and records
// the history row and outbox event in the same transaction.
func (s *bookingService) Transition(ctx context.Context, tenantID, bookingID uuid.UUID, to entity.BookingStatus, actor entity.Actor, reason *string) (*response.BookingResponse, error) {
	ctx, span := tracer.Start(ctx, "booking.transition", trace.WithAttributes(
		attribute.String("tenant.id", tenantID.String()),
		attribute.String("booking.id", bookingID.String()),
		attribute.String("booking.to", string(to)),
		attribute.String("actor", actor.String()),
	))
	defer span.End()

	if actor.Role == entity.RoleCustomer && to != entity.BookingStatusCancelled {
		return nil, fmt.Errorf("customer may only cancel: %w", ErrForbiddenRole)
	}

	var updated *entity.Booking
	var from entity.BookingStatus

	err := s.tx.InTx(ctx, func(repo *repository.Repository) error {
		booking, err := repo.Booking.FindByIDForUpdate(ctx, tenantID, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
		}

		from = booking.Status
		if from == entity.BookingStatusCompleted {
			return fmt.Errorf("booking %s is %s: %w", bookingID, from, ErrImmutable)
		}
		if !from.CanTransitionTo(to) {
			return fmt.Errorf("booking %s %s -> %s: %w", bookingID, from, to, ErrInvalidTransition)
		}

		now := s.now().UTC()

		// The row lock already serializes writers. The status predicate keeps
		// the write correct for callers that skip the lock.
		ok, err := repo.Booking.UpdateStatusIfMatch(ctx, tenantID, bookingID, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("booking %s changed from %s: %w", bookingID, from, ErrConcurrentModification)
		}

		history := &entity.BookingStatusHistory{
			BookingID:      bookingID,
			PreviousStatus: from,
			NewStatus:      to,
			ActorID:        actor.ID,
			ActorRole:      actor.Role,
			Reason:         reason,
		}
		history.ID = uuid.New()
		history.TenantID = tenantID
		history.CreatedAt = now
		if err := repo.History.Append(ctx, history); err != nil {
			return err
		}

		booking.Status = to
		booking.UpdatedAt = now

		payload, err := bookingEventFor(booking, actor, now)
		if err != nil {
			return err
		}
		evt, err := newOutboxEvent(tenantID, entity.AggregateBooking, bookingID, payload, now)
		if err != nil {
			return err
		}
		if err := repo.Outbox.Insert(ctx, evt); err != nil {
			return err
		}

		updated = booking
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !IsDomainError(err) {
			s.log.Error("Booking transition failed",
				zap.Error(err),
				zap.String("booking_id", bookingID.String()),
				zap.String("to", string(to)),
			)
		}
		return nil, err
	}

	s.log.Info("Booking transitioned",
		zap.String("tenant_id", tenantID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor.String()),
	)

	return response.BookingToResponse(updated), nil
}

// bookingEventFor picks the outbox payload for the booking's new status.
func bookingEventFor(b *entity.Booking, actor entity.Actor, now time.Time) (event.Payload, error) {
	progress := func(t event.Type) event.Payload {
		return event.BookingProgressPayload{
			Type:             t,
			BookingID:        b.ID,
			TenantID:         b.TenantID,
			BookingReference: b.Reference,
			Actor:            actor.String(),
		}
	}

	switch b.Status {
	case entity.BookingStatusPending:
		return progress(event.BookingSubmitted), nil
	case entity.BookingStatusConfirmed:
		return event.BookingConfirmedPayload{
			BookingID:        b.ID,
			TenantID:         b.TenantID,
			BookingReference: b.Reference,
			CustomerEmail:    b.CustomerEmail,
			TotalPriceMinor:  b.TotalPriceMinor,
			Currency:         b.Currency,
		}, nil
	case entity.BookingStatusAssigned:
		return progress(event.BookingAssigned), nil
	case entity.BookingStatusInProgress:
		return progress(event.BookingStarted), nil
	case entity.BookingStatusCompleted:
		return event.JobCompletedPayload{
			BookingID:        b.ID,
			TenantID:         b.TenantID,
			BookingReference: b.Reference,
			TotalPriceMinor:  b.TotalPriceMinor,
			Currency:         b.Currency,
			CompletedAt:      now,
		}, nil
	case entity.BookingStatusCancelled:
		return event.BookingCancelledPayload{
			BookingID:        b.ID,
			TenantID:         b.TenantID,
			BookingReference: b.Reference,
			CancelledBy:      actor.String(),
		}, nil
	case entity.BookingStatusNoShow:
		return event.BookingNoShowPayload{
			BookingID:        b.ID,
			TenantID:         b.TenantID,
			BookingReference: b.Reference,
		}, nil
	default:
		return nil, fmt.Errorf("no event defined for booking status %s", b.Status)
	}
}

func (s *bookingService) GetBooking(ctx context.Context, tenantID, bookingID uuid.UUID) (*response.BookingResponse, error) {
	booking, err := s.repo.Booking.FindByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, ErrNotFound)
	}
	return response.BookingToResponse(booking), nil
}

func (s *bookingService) ListHistory(ctx context.Context, tenantID, bookingID uuid.UUID) ([]response.StatusHistoryResponse, error) {
	if _, err := s.GetBooking(ctx, tenantID, bookingID); err != nil {
		return nil, err
	}

	rows, err := s.repo.History.ListByBookingID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list booking history: %w", err)
	}

	out := make([]response.StatusHistoryResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, response.HistoryToResponse(h))
	}
	return out, nil
}
