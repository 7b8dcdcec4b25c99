package request

type OfferRequest struct {
	DriverID  string  `json:"driver_id" validate:"required,uuid"`
	VehicleID *string `json:"vehicle_id,omitempty" validate:"omitempty,uuid"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// AssignmentActionRequest is the optional body of accept, decline, start and complete.
type AssignmentActionRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type SetAvailabilityRequest struct {
	Status string `json:"status" validate:"required,oneof=AVAILABLE ON_JOB OFFLINE"`
}
