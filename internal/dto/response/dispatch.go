package response

import (
	"time"

	"transport-booking/internal/data/entity"
)

type AssignmentResponse struct {
	ID          string                  `json:"id"`
	BookingID   string                  `json:"booking_id"`
	DriverID    string                  `json:"driver_id"`
	VehicleID   *string                 `json:"vehicle_id,omitempty"`
	Status      entity.AssignmentStatus `json:"status"`
	OfferedAt   time.Time               `json:"offered_at"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// OfferResponse carries the assignment the offer replaced, if any.
type OfferResponse struct {
	Assignment         *AssignmentResponse `json:"assignment"`
	SupersededDriverID *string             `json:"superseded_driver_id,omitempty"`
	SupersededStatus   *string             `json:"superseded_status,omitempty"`
}

type ActivityResponse struct {
	ID             string                   `json:"id"`
	PreviousStatus *entity.AssignmentStatus `json:"previous_status,omitempty"`
	NewStatus      entity.AssignmentStatus  `json:"new_status"`
	ActorID        string                   `json:"actor_id"`
	ActorRole      entity.Role              `json:"actor_role"`
	Reason         *string                  `json:"reason,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
}

type AvailabilityResponse struct {
	DriverID  string              `json:"driver_id"`
	Status    entity.DriverStatus `json:"status"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func AssignmentToResponse(a *entity.Assignment) *AssignmentResponse {
	resp := &AssignmentResponse{
		ID:          a.ID.String(),
		BookingID:   a.BookingID.String(),
		DriverID:    a.DriverID.String(),
		Status:      a.Status,
		OfferedAt:   a.OfferedAt,
		CompletedAt: a.CompletedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.VehicleID != nil {
		v := a.VehicleID.String()
		resp.VehicleID = &v
	}
	return resp
}

func ActivityToResponse(a *entity.AssignmentActivity) ActivityResponse {
	return ActivityResponse{
		ID:             a.ID.String(),
		PreviousStatus: a.PreviousStatus,
		NewStatus:      a.NewStatus,
		ActorID:        a.ActorID,
		ActorRole:      a.ActorRole,
		Reason:         a.Reason,
		CreatedAt:      a.CreatedAt,
	}
}
