package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusDraft      BookingStatus = "DRAFT"
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusConfirmed  BookingStatus = "CONFIRMED"
	BookingStatusAssigned   BookingStatus = "ASSIGNED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
	BookingStatusNoShow     BookingStatus = "NO_SHOW"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid     PaymentStatus = "UNPAID"
	PaymentStatusAuthorized PaymentStatus = "AUTHORIZED"
	PaymentStatusCaptured   PaymentStatus = "CAPTURED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// bookingTransitions lists every legal edge. Statuses absent as keys are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusDraft:      {BookingStatusPending, BookingStatusCancelled},
	BookingStatusPending:    {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:  {BookingStatusAssigned, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusAssigned:   {BookingStatusInProgress, BookingStatusCancelled},
	BookingStatusInProgress: {BookingStatusCompleted},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusDraft, BookingStatusPending, BookingStatusConfirmed, BookingStatusAssigned,
		BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// InitialBookingStatus is the status every booking is created in.
const InitialBookingStatus = BookingStatusPending

type Booking struct {
	BaseNoDelete
	Reference       string        `db:"booking_reference"`
	Status          BookingStatus `db:"status"`
	PaymentStatus   PaymentStatus `db:"payment_status"`
	CustomerName    string        `db:"customer_name"`
	CustomerEmail   string        `db:"customer_email"`
	CustomerPhone   string        `db:"customer_phone"`
	PickupAddress   string        `db:"pickup_address"`
	DropoffAddress  string        `db:"dropoff_address"`
	PickupAt        time.Time     `db:"pickup_at"`
	TotalPriceMinor int64         `db:"total_price_minor"`
	Currency        string        `db:"currency"`
	ClientRequestID *string       `db:"client_request_id"`
}

// BookingStatusHistory is one row per successful transition.
type BookingStatusHistory struct {
	BaseSimple
	BookingID      uuid.UUID     `db:"booking_id"`
	PreviousStatus BookingStatus `db:"previous_status"`
	NewStatus      BookingStatus `db:"new_status"`
	ActorID        string        `db:"actor_id"`
	ActorRole      Role          `db:"actor_role"`
	Reason         *string       `db:"reason"`
}

type IdempotencyRecord struct {
	TenantID        uuid.UUID `db:"tenant_id"`
	ClientRequestID string    `db:"client_request_id"`
	BookingID       uuid.UUID `db:"booking_id"`
	CreatedAt       time.Time `db:"created_at"`
}
