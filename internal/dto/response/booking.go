package response

import (
	"time"

	"transport-booking/internal/data/entity"
)

type BookingResponse struct {
	ID              string               `json:"id"`
	TenantID        string               `json:"tenant_id"`
	Reference       string               `json:"booking_reference"`
	Status          entity.BookingStatus `json:"status"`
	PaymentStatus   entity.PaymentStatus `json:"payment_status"`
	CustomerName    string               `json:"customer_name"`
	CustomerEmail   string               `json:"customer_email"`
	CustomerPhone   string               `json:"customer_phone,omitempty"`
	PickupAddress   string               `json:"pickup_address"`
	DropoffAddress  string               `json:"dropoff_address"`
	PickupAt        time.Time            `json:"pickup_at"`
	TotalPriceMinor int64                `json:"total_price_minor"`
	Currency        string               `json:"currency"`
	ClientRequestID *string              `json:"client_request_id,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// CreateBookingResponse reports Created=false when the request key was seen before.
type CreateBookingResponse struct {
	BookingID string `json:"booking_id"`
	Created   bool   `json:"created"`
}

type StatusHistoryResponse struct {
	ID             string               `json:"id"`
	PreviousStatus entity.BookingStatus `json:"previous_status"`
	NewStatus      entity.BookingStatus `json:"new_status"`
	ActorID        string               `json:"actor_id"`
	ActorRole      entity.Role          `json:"actor_role"`
	Reason         *string              `json:"reason,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Helper converters
func BookingToResponse(b *entity.Booking) *BookingResponse {
	return &BookingResponse{
		ID:              b.ID.String(),
		TenantID:        b.TenantID.String(),
		Reference:       b.Reference,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		CustomerName:    b.CustomerName,
		CustomerEmail:   b.CustomerEmail,
		CustomerPhone:   b.CustomerPhone,
		PickupAddress:   b.PickupAddress,
		DropoffAddress:  b.DropoffAddress,
		PickupAt:        b.PickupAt,
		TotalPriceMinor: b.TotalPriceMinor,
		Currency:        b.Currency,
		ClientRequestID: b.ClientRequestID,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func HistoryToResponse(h *entity.BookingStatusHistory) StatusHistoryResponse {
	return StatusHistoryResponse{
		ID:             h.ID.String(),
		PreviousStatus: h.PreviousStatus,
		NewStatus:      h.NewStatus,
		ActorID:        h.ActorID,
		ActorRole:      h.ActorRole,
		Reason:         h.Reason,
		CreatedAt:      h.CreatedAt,
	}
}
