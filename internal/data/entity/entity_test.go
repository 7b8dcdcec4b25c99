package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatusCanTransitionTo(t *testing.T) {
	all := []BookingStatus{
		BookingStatusDraft, BookingStatusPending, BookingStatusConfirmed, BookingStatusAssigned,
		BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow,
	}
	allowed := map[BookingStatus]map[BookingStatus]bool{
		BookingStatusDraft:      {BookingStatusPending: true, BookingStatusCancelled: true},
		BookingStatusPending:    {BookingStatusConfirmed: true, BookingStatusCancelled: true},
		BookingStatusConfirmed:  {BookingStatusAssigned: true, BookingStatusCancelled: true, BookingStatusNoShow: true},
		BookingStatusAssigned:   {BookingStatusInProgress: true, BookingStatusCancelled: true},
		BookingStatusInProgress: {BookingStatusCompleted: true},
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[from][to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestAssignmentStatusTerminal(t *testing.T) {
	assert.False(t, AssignmentStatusOffered.Terminal())
	assert.False(t, AssignmentStatusAccepted.Terminal())
	assert.False(t, AssignmentStatusJobStarted.Terminal())
	assert.True(t, AssignmentStatusJobCompleted.Terminal())
	assert.True(t, AssignmentStatusCancelled.Terminal())
	assert.True(t, AssignmentStatusExpired.Terminal())
	assert.True(t, AssignmentStatusDeclined.Terminal())

	assert.True(t, AssignmentStatusOffered.CanTransitionTo(AssignmentStatusExpired))
	assert.False(t, AssignmentStatusJobStarted.CanTransitionTo(AssignmentStatusCancelled))
}

func TestActorHasRole(t *testing.T) {
	a := Actor{ID: "d-1", Role: RoleDriver}
	assert.True(t, a.HasRole(RoleAdmin, RoleDriver))
	assert.False(t, a.HasRole(RoleDispatcher))
	assert.Equal(t, "driver:d-1", a.String())
}
