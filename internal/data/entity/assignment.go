package entity

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentStatusOffered      AssignmentStatus = "OFFERED"
	AssignmentStatusAccepted     AssignmentStatus = "ACCEPTED"
	AssignmentStatusDeclined     AssignmentStatus = "DECLINED"
	AssignmentStatusExpired      AssignmentStatus = "EXPIRED"
	AssignmentStatusJobStarted   AssignmentStatus = "JOB_STARTED"
	AssignmentStatusJobCompleted AssignmentStatus = "JOB_COMPLETED"
	AssignmentStatusCancelled    AssignmentStatus = "CANCELLED"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusOffered: {
		AssignmentStatusAccepted,
		AssignmentStatusDeclined,
		AssignmentStatusExpired,
		AssignmentStatusCancelled,
	},
	AssignmentStatusAccepted:   {AssignmentStatusJobStarted, AssignmentStatusCancelled},
	AssignmentStatusJobStarted: {AssignmentStatusJobCompleted},
}

func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, allowed := range assignmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s AssignmentStatus) Terminal() bool {
	_, ok := assignmentTransitions[s]
	return !ok
}

// Assignment is the single current dispatch record of a booking. Re-offers
// overwrite it in place.
type Assignment struct {
	BaseNoDelete
	BookingID   uuid.UUID        `db:"booking_id"`
	DriverID    uuid.UUID        `db:"driver_id"`
	VehicleID   *uuid.UUID       `db:"vehicle_id"`
	Status      AssignmentStatus `db:"status"`
	OfferedAt   time.Time        `db:"offered_at"`
	CompletedAt *time.Time       `db:"completed_at"`
}

type AssignmentActivity struct {
	BaseSimple
	AssignmentID   uuid.UUID         `db:"assignment_id"`
	BookingID      uuid.UUID         `db:"booking_id"`
	PreviousStatus *AssignmentStatus `db:"previous_status"`
	NewStatus      AssignmentStatus  `db:"new_status"`
	ActorID        string            `db:"actor_id"`
	ActorRole      Role              `db:"actor_role"`
	Reason         *string           `db:"reason"`
}

type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusOnJob     DriverStatus = "ON_JOB"
	DriverStatusOffline   DriverStatus = "OFFLINE"
)

func (s DriverStatus) Valid() bool {
	return s == DriverStatusAvailable || s == DriverStatusOnJob || s == DriverStatusOffline
}

type DriverAvailability struct {
	TenantID  uuid.UUID    `db:"tenant_id"`
	DriverID  uuid.UUID    `db:"driver_id"`
	Status    DriverStatus `db:"status"`
	UpdatedAt time.Time    `db:"updated_at"`
}
