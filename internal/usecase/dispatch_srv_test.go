package usecase

import (
	"context"
	"testing"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository/repotest"
	"transport-booking/internal/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) offer(t *testing.T, bookingID, driverID uuid.UUID) uuid.UUID {
	t.Helper()
	resp, err := f.dispatch.Offer(context.Background(), f.tenantID, bookingID, driverID, nil, dispatcher, nil)
	require.NoError(t, err)
	return uuid.MustParse(resp.Assignment.ID)
}

func TestOfferPreconditions(t *testing.T) {
	t.Run("role", func(t *testing.T) {
		f := newFixture(t)
		id := f.seedBooking(entity.BookingStatusConfirmed)
		for _, actor := range []entity.Actor{customer, driverActor(uuid.New())} {
			_, err := f.dispatch.Offer(context.Background(), f.tenantID, id, uuid.New(), nil, actor, nil)
			assert.ErrorIs(t, err, ErrForbiddenRole)
		}
	})

	t.Run("booking must be confirmed", func(t *testing.T) {
		f := newFixture(t)
		id := f.seedBooking(entity.BookingStatusPending)
		_, err := f.dispatch.Offer(context.Background(), f.tenantID, id, uuid.New(), nil, dispatcher, nil)
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Empty(t, f.mem.Snapshot().Assignments)
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.dispatch.Offer(context.Background(), f.tenantID, uuid.New(), uuid.New(), nil, dispatcher, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("driver availability", func(t *testing.T) {
		tests := []struct {
			name   string
			status entity.DriverStatus
			seed   bool
			err    error
		}{
			{name: "no row is eligible", seed: false},
			{name: "available", status: entity.DriverStatusAvailable, seed: true},
			{name: "on job", status: entity.DriverStatusOnJob, seed: true, err: ErrDriverUnavailable},
			{name: "offline", status: entity.DriverStatusOffline, seed: true, err: ErrDriverUnavailable},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				id := f.seedBooking(entity.BookingStatusConfirmed)
				driverID := uuid.New()
				if tt.seed {
					f.mem.Mutate(func(s *repotest.State) { s.PutDriver(f.tenantID, driverID, tt.status) })
				}

				_, err := f.dispatch.Offer(context.Background(), f.tenantID, id, driverID, nil, admin, nil)
				if tt.err != nil {
					assert.ErrorIs(t, err, tt.err)
					return
				}
				assert.NoError(t, err)
			})
		}
	})
}

func TestOfferWritesAssignmentActivityAndEvent(t *testing.T) {
	f := newFixture(t)
	bookingID := f.seedBooking(entity.BookingStatusConfirmed)
	driverID, vehicleID := uuid.New(), uuid.New()

	resp, err := f.dispatch.Offer(context.Background(), f.tenantID, bookingID, driverID, &vehicleID, dispatcher, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.SupersededDriverID)

	a := f.assignment(t, uuid.MustParse(resp.Assignment.ID))
	assert.Equal(t, entity.AssignmentStatusOffered, a.Status)
	assert.Equal(t, driverID, a.DriverID)
	require.NotNil(t, a.VehicleID)
	assert.Equal(t, vehicleID, *a.VehicleID)
	assert.True(t, a.OfferedAt.Equal(f.clock()))

	state := f.mem.Snapshot()
	require.Len(t, state.Activity, 1)
	assert.Nil(t, state.Activity[0].PreviousStatus)
	assert.Equal(t, entity.AssignmentStatusOffered, state.Activity[0].NewStatus)
	assert.Equal(t, 1, f.mem.OutboxByType()[string(event.DriverInvitationSent)])
}

func TestReofferSupersedesPriorOffer(t *testing.T) {
	f := newFixture(t)
	bookingID := f.seedBooking(entity.BookingStatusConfirmed)
	first, second := uuid.New(), uuid.New()

	firstID := f.offer(t, bookingID, first)
	f.advance(time.Minute)
	resp, err := f.dispatch.Offer(context.Background(), f.tenantID, bookingID, second, nil, dispatcher, nil)
	require.NoError(t, err)

	require.NotNil(t, resp.SupersededDriverID)
	assert.Equal(t, first.String(), *resp.SupersededDriverID)
	assert.Equal(t, firstID.String(), resp.Assignment.ID)

	state := f.mem.Snapshot()
	require.Len(t, state.Assignments, 1)
	assert.Equal(t, second, state.Assignments[firstID].DriverID)
	require.Len(t, state.Activity, 2)
	require.NotNil(t, state.Activity[1].PreviousStatus)
	assert.Equal(t, entity.AssignmentStatusOffered, *state.Activity[1].PreviousStatus)
}

func TestDriverActions(t *testing.T) {
	f := newFixture(t)
	bookingID := f.seedBooking(entity.BookingStatusConfirmed)
	driverID := uuid.New()
	id := f.offer(t, bookingID, driverID)
	driver := driverActor(driverID)
	ctx := context.Background()

	_, err := f.dispatch.Start(ctx, f.tenantID, id, driver, nil)
	assert.ErrorIs(t, err, ErrInvalidState, "start before accept")

	_, err = f.dispatch.Accept(ctx, f.tenantID, id, driverActor(uuid.New()), nil)
	assert.ErrorIs(t, err, ErrDriverMismatch)

	_, err = f.dispatch.Accept(ctx, f.tenantID, id, dispatcher, nil)
	assert.ErrorIs(t, err, ErrForbiddenRole)

	resp, err := f.dispatch.Accept(ctx, f.tenantID, id, driver, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.AssignmentStatusAccepted, resp.Status)

	_, err = f.dispatch.Accept(ctx, f.tenantID, id, driver, nil)
	assert.ErrorIs(t, err, ErrInvalidState, "accept twice")

	_, err = f.dispatch.Start(ctx, f.tenantID, id, driver, nil)
	require.NoError(t, err)
	avail, ok := f.mem.Snapshot().Driver(f.tenantID, driverID)
	require.True(t, ok)
	assert.Equal(t, entity.DriverStatusOnJob, avail.Status)

	f.advance(40 * time.Minute)
	resp, err = f.dispatch.Complete(ctx, f.tenantID, id, driver, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.CompletedAt)
	assert.True(t, resp.CompletedAt.Equal(f.clock()))

	avail, _ = f.mem.Snapshot().Driver(f.tenantID, driverID)
	assert.Equal(t, entity.DriverStatusAvailable, avail.Status)

	types := f.mem.OutboxByType()
	for _, want := range []event.Type{
		event.DriverInvitationSent,
		event.DriverAcceptedAssignment,
		event.DriverStartedTrip,
		event.DriverCompletedTrip,
	} {
		assert.Equal(t, 1, types[string(want)], "event %s", want)
	}

	activity, err := f.dispatch.ListActivity(ctx, f.tenantID, id)
	require.NoError(t, err)
	assert.Len(t, activity, 4)
}

func TestDeclineIsTerminal(t *testing.T) {
	f := newFixture(t)
	bookingID := f.seedBooking(entity.BookingStatusConfirmed)
	driverID := uuid.New()
	id := f.offer(t, bookingID, driverID)

	_, err := f.dispatch.Decline(context.Background(), f.tenantID, id, driverActor(driverID), strPtr("too far"))
	require.NoError(t, err)
	assert.Equal(t, entity.AssignmentStatusDeclined, f.assignment(t, id).Status)

	_, err = f.dispatch.Accept(context.Background(), f.tenantID, id, driverActor(driverID), nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExpireOffers(t *testing.T) {
	f := newFixture(t)
	stale := f.offer(t, f.seedBooking(entity.BookingStatusConfirmed), uuid.New())
	f.advance(4 * time.Minute)
	fresh := f.offer(t, f.seedBooking(entity.BookingStatusConfirmed), uuid.New())
	f.advance(2 * time.Minute)

	cutoff := f.clock().Add(-5 * time.Minute)
	n, err := f.dispatch.ExpireOffers(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, entity.AssignmentStatusExpired, f.assignment(t, stale).Status)
	assert.Equal(t, entity.AssignmentStatusOffered, f.assignment(t, fresh).Status)
	assert.Equal(t, 1, f.mem.OutboxByType()[string(event.AssignmentExpired)])

	n, err = f.dispatch.ExpireOffers(context.Background(), cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, n, "expired offers are not touched again")
	assert.Equal(t, 1, f.mem.OutboxByType()[string(event.AssignmentExpired)])
}

func TestForceCancelForBooking(t *testing.T) {
	tests := []struct {
		name       string
		status     entity.AssignmentStatus
		wantWrite  bool
		wantDriver entity.DriverStatus
	}{
		{name: "offered", status: entity.AssignmentStatusOffered, wantWrite: true},
		{name: "accepted frees driver", status: entity.AssignmentStatusAccepted, wantWrite: true, wantDriver: entity.DriverStatusAvailable},
		{name: "job started is overridden", status: entity.AssignmentStatusJobStarted, wantWrite: true, wantDriver: entity.DriverStatusAvailable},
		{name: "already cancelled", status: entity.AssignmentStatusCancelled},
		{name: "completed", status: entity.AssignmentStatusJobCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			bookingID := f.seedBooking(entity.BookingStatusConfirmed)
			driverID := uuid.New()
			id := f.offer(t, bookingID, driverID)
			f.mem.Mutate(func(s *repotest.State) {
				a := s.Assignments[id]
				a.Status = tt.status
				s.Assignments[id] = a
				s.PutDriver(f.tenantID, driverID, entity.DriverStatusOnJob)
			})
			before := len(f.mem.Snapshot().Activity)

			wrote, err := f.dispatch.ForceCancelForBooking(context.Background(), f.tenantID, bookingID, projectorActor, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWrite, wrote)

			state := f.mem.Snapshot()
			if !tt.wantWrite {
				assert.Equal(t, tt.status, state.Assignments[id].Status)
				assert.Len(t, state.Activity, before)
				return
			}
			assert.Equal(t, entity.AssignmentStatusCancelled, state.Assignments[id].Status)
			assert.Len(t, state.Activity, before+1)

			avail, _ := state.Driver(f.tenantID, driverID)
			if tt.wantDriver != "" {
				assert.Equal(t, tt.wantDriver, avail.Status)
			} else {
				assert.Equal(t, entity.DriverStatusOnJob, avail.Status)
			}
		})
	}

	t.Run("no assignment", func(t *testing.T) {
		f := newFixture(t)
		wrote, err := f.dispatch.ForceCancelForBooking(context.Background(), f.tenantID, f.seedBooking(entity.BookingStatusCancelled), projectorActor, nil)
		require.NoError(t, err)
		assert.False(t, wrote)
	})
}

func TestSetAvailability(t *testing.T) {
	f := newFixture(t)
	driverID := uuid.New()

	resp, err := f.dispatch.SetAvailability(context.Background(), f.tenantID, driverID, entity.DriverStatusOffline)
	require.NoError(t, err)
	assert.Equal(t, entity.DriverStatusOffline, resp.Status)

	_, err = f.dispatch.SetAvailability(context.Background(), f.tenantID, driverID, entity.DriverStatus("BUSY"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.dispatch.Offer(context.Background(), f.tenantID, f.seedBooking(entity.BookingStatusConfirmed), driverID, nil, dispatcher, nil)
	assert.ErrorIs(t, err, ErrDriverUnavailable)
}
