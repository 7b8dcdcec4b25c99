// Package event defines the domain events written to the outbox, their
// schema-version-1 payloads, and the in-process registry the relay uses to
// fan published events out to subscribers.
package event

import (
	"encoding/json"
	"time"

	"transport-booking/internal/data/entity"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "BookingCreated"
	BookingSubmitted Type = "BookingSubmitted"
	BookingConfirmed Type = "BookingConfirmed"
	BookingAssigned  Type = "BookingAssigned"
	BookingStarted   Type = "BookingStarted"
	JobCompleted     Type = "JobCompleted"
	BookingCancelled Type = "BookingCancelled"
	BookingNoShow    Type = "BookingNoShow"

	DriverInvitationSent     Type = "DriverInvitationSent"
	DriverAcceptedAssignment Type = "DriverAcceptedAssignment"
	DriverDeclinedAssignment Type = "DriverDeclinedAssignment"
	AssignmentExpired        Type = "AssignmentExpired"
	DriverStartedTrip        Type = "DriverStartedTrip"
	DriverCompletedTrip      Type = "DriverCompletedTrip"
)

// SchemaVersion is stamped on every outbox row.
const SchemaVersion = 1

// Payload is implemented by every event body.
type Payload interface {
	EventType() Type
}

// Envelope is an outbox row as seen by publishers and subscribers.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	Type          Type            `json:"event_type"`
	Version       int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type BookingCreatedPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
	CustomerName     string    `json:"customer_name"`
	PickupAddress    string    `json:"pickup_address"`
	DropoffAddress   string    `json:"dropoff_address"`
	PickupAtUTC      time.Time `json:"pickup_at_utc"`
	TotalPriceMinor  int64     `json:"total_price_minor"`
	Currency         string    `json:"currency"`
}

func (BookingCreatedPayload) EventType() Type { return BookingCreated }

type BookingConfirmedPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
	CustomerEmail    string    `json:"customer_email"`
	TotalPriceMinor  int64     `json:"total_price_minor"`
	Currency         string    `json:"currency"`
}

func (BookingConfirmedPayload) EventType() Type { return BookingConfirmed }

type JobCompletedPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
	TotalPriceMinor  int64     `json:"total_price_minor"`
	Currency         string    `json:"currency"`
	CompletedAt      time.Time `json:"completed_at"`
}

func (JobCompletedPayload) EventType() Type { return JobCompleted }

type BookingCancelledPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
	CancelledBy      string    `json:"cancelled_by"`
}

func (BookingCancelledPayload) EventType() Type { return BookingCancelled }

type BookingNoShowPayload struct {
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
}

func (BookingNoShowPayload) EventType() Type { return BookingNoShow }

// BookingProgressPayload covers transitions that only need the reference and
// actor: submitted, assigned and started.
type BookingProgressPayload struct {
	Type             Type      `json:"-"`
	BookingID        uuid.UUID `json:"booking_id"`
	TenantID         uuid.UUID `json:"tenant_id"`
	BookingReference string    `json:"booking_reference"`
	Actor            string    `json:"actor"`
}

func (p BookingProgressPayload) EventType() Type { return p.Type }

// AssignmentPayload is shared by every dispatch event.
type AssignmentPayload struct {
	Type         Type       `json:"-"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	BookingID    uuid.UUID  `json:"booking_id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	DriverID     uuid.UUID  `json:"driver_id"`
	VehicleID    *uuid.UUID `json:"vehicle_id,omitempty"`
	Reason       *string    `json:"reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

func (p AssignmentPayload) EventType() Type { return p.Type }

// EnvelopeOf wraps a stored outbox row for delivery.
func EnvelopeOf(e *entity.OutboxEvent) Envelope {
	return Envelope{
		ID:            e.ID,
		TenantID:      e.TenantID,
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		Type:          Type(e.EventType),
		Version:       e.SchemaVersion,
		Payload:       e.Payload,
		OccurredAt:    e.CreatedAt,
	}
}
