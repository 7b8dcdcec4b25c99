package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository/repotest"
	"transport-booking/internal/dto/request"
	"transport-booking/internal/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	mem      *repotest.Memory
	booking  *bookingService
	dispatch *dispatchService
	tenantID uuid.UUID

	mu        sync.Mutex
	now       time.Time
	delivered map[uuid.UUID]bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := repotest.New()
	repo := mem.Repository()
	f := &fixture{
		mem:      mem,
		tenantID: uuid.New(),
		now:      time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC),

		delivered: make(map[uuid.UUID]bool),
	}

	f.booking = NewBookingService(mem, repo, zap.NewNop()).(*bookingService)
	f.booking.now = f.clock
	f.dispatch = NewDispatchService(mem, repo, NewAvailabilityEligibility(repo.Availability), zap.NewNop()).(*dispatchService)
	f.dispatch.now = f.clock
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fixture) seedBooking(status entity.BookingStatus) uuid.UUID {
	id := uuid.New()
	b := entity.Booking{
		Reference:       "BK-20260302-083000-0001",
		Status:          status,
		PaymentStatus:   entity.PaymentStatusUnpaid,
		CustomerName:    "Ada Rider",
		CustomerEmail:   "ada@example.com",
		PickupAddress:   "1 Harbour Rd",
		DropoffAddress:  "Airport T2",
		PickupAt:        f.now.Add(2 * time.Hour),
		TotalPriceMinor: 4500,
		Currency:        "EUR",
	}
	b.ID = id
	b.TenantID = f.tenantID
	b.CreatedAt = f.now
	b.UpdatedAt = f.now
	f.mem.Mutate(func(s *repotest.State) { s.Bookings[id] = b })
	return id
}

func (f *fixture) bookingStatus(t *testing.T, id uuid.UUID) entity.BookingStatus {
	t.Helper()
	b, ok := f.mem.Snapshot().Bookings[id]
	require.True(t, ok)
	return b.Status
}

func (f *fixture) assignment(t *testing.T, id uuid.UUID) entity.Assignment {
	t.Helper()
	a, ok := f.mem.Snapshot().Assignments[id]
	require.True(t, ok)
	return a
}

// deliver dispatches every outbox row not yet delivered to r in insertion
// order, including rows written by the handlers themselves.
func (f *fixture) deliver(t *testing.T, r *event.Registry) {
	t.Helper()
	delivered := f.delivered
	for {
		var next *entity.OutboxEvent
		for _, evt := range f.mem.Snapshot().Outbox {
			if !delivered[evt.ID] {
				evt := evt
				next = &evt
				break
			}
		}
		if next == nil {
			return
		}
		delivered[next.ID] = true
		require.NoError(t, r.Dispatch(context.Background(), event.EnvelopeOf(next)))
	}
}

var (
	dispatcher = entity.Actor{ID: "dispatcher-1", Role: entity.RoleDispatcher}
	customer   = entity.Actor{ID: "customer-1", Role: entity.RoleCustomer}
	admin      = entity.Actor{ID: "admin-1", Role: entity.RoleAdmin}
)

func driverActor(id uuid.UUID) entity.Actor {
	return entity.Actor{ID: id.String(), Role: entity.RoleDriver}
}

func validCreateRequest(key *string) *request.CreateBookingRequest {
	return &request.CreateBookingRequest{
		ClientRequestID: key,
		CustomerName:    "Ada Rider",
		CustomerEmail:   "ada@example.com",
		CustomerPhone:   "+31 6 1234 5678",
		PickupAddress:   "1 Harbour Rd",
		DropoffAddress:  "Airport T2",
		PickupAt:        time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		TotalPriceMinor: 4500,
		Currency:        "EUR",
	}
}

func strPtr(s string) *string { return &s }
