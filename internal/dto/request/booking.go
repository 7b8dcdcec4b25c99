package request

import "time"

type CreateBookingRequest struct {
	ClientRequestID *string   `json:"client_request_id,omitempty" validate:"omitempty,min=1,max=128"`
	CustomerName    string    `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string    `json:"customer_email" validate:"required,email"`
	CustomerPhone   string    `json:"customer_phone" validate:"omitempty,max=32"`
	PickupAddress   string    `json:"pickup_address" validate:"required,max=500"`
	DropoffAddress  string    `json:"dropoff_address" validate:"required,max=500"`
	PickupAt        time.Time `json:"pickup_at" validate:"required"`
	TotalPriceMinor int64     `json:"total_price_minor" validate:"min=0"`
	Currency        string    `json:"currency" validate:"required,currency"`
}

type TransitionRequest struct {
	Status string  `json:"status" validate:"required,oneof=DRAFT PENDING CONFIRMED ASSIGNED IN_PROGRESS COMPLETED CANCELLED NO_SHOW"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
