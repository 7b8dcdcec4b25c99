// Package repotest provides an in-memory implementation of the repository
// layer for service and worker tests. Transactions are serialized by a single
// mutex, which stands in for row locks, and roll back by restoring a snapshot.
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/data/repository"

	"github.com/google/uuid"
)

type idemKey struct {
	tenantID uuid.UUID
	key      string
}

type availKey struct {
	tenantID uuid.UUID
	driverID uuid.UUID
}

// State is the raw table contents. Tests may read it through Memory.Snapshot.
type State struct {
	Bookings     map[uuid.UUID]entity.Booking
	Idempotency  map[idemKey]uuid.UUID
	History      []entity.BookingStatusHistory
	Outbox       []entity.OutboxEvent
	Assignments  map[uuid.UUID]entity.Assignment
	Activity     []entity.AssignmentActivity
	Availability map[availKey]entity.DriverAvailability
}

func newState() *State {
	return &State{
		Bookings:     make(map[uuid.UUID]entity.Booking),
		Idempotency:  make(map[idemKey]uuid.UUID),
		Assignments:  make(map[uuid.UUID]entity.Assignment),
		Availability: make(map[availKey]entity.DriverAvailability),
	}
}

func (s *State) clone() *State {
	c := newState()
	for k, v := range s.Bookings {
		c.Bookings[k] = v
	}
	for k, v := range s.Idempotency {
		c.Idempotency[k] = v
	}
	for k, v := range s.Assignments {
		c.Assignments[k] = v
	}
	for k, v := range s.Availability {
		c.Availability[k] = v
	}
	c.History = append(c.History, s.History...)
	c.Outbox = append(c.Outbox, s.Outbox...)
	c.Activity = append(c.Activity, s.Activity...)
	return c
}

// PutIdempotency records that key already maps to bookingID.
func (s *State) PutIdempotency(tenantID uuid.UUID, key string, bookingID uuid.UUID) {
	s.Idempotency[idemKey{tenantID, key}] = bookingID
}

func (s *State) Driver(tenantID, driverID uuid.UUID) (entity.DriverAvailability, bool) {
	a, ok := s.Availability[availKey{tenantID, driverID}]
	return a, ok
}

func (s *State) PutDriver(tenantID, driverID uuid.UUID, status entity.DriverStatus) {
	s.Availability[availKey{tenantID, driverID}] = entity.DriverAvailability{
		TenantID: tenantID,
		DriverID: driverID,
		Status:   status,
	}
}

// Memory implements repository.Transactor.
type Memory struct {
	mu    sync.Mutex
	state *State

	// BookingWriteHook runs inside UpdateStatusIfMatch before the status
	// comparison, letting a test simulate a concurrent writer.
	BookingWriteHook func(s *State, bookingID uuid.UUID)
	// IdempotencyMissHook runs when a key lookup finds nothing, letting a test
	// commit a competing request between the lookup and the insert.
	IdempotencyMissHook func(s *State, tenantID uuid.UUID, key string)
}

func New() *Memory {
	return &Memory{state: newState()}
}

func (m *Memory) InTx(ctx context.Context, fn func(repo *repository.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(m.repos(true)); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Repository returns repositories that run each call in its own critical section.
func (m *Memory) Repository() *repository.Repository {
	return m.repos(false)
}

func (m *Memory) repos(inTx bool) *repository.Repository {
	base := &table{m: m, inTx: inTx}
	return &repository.Repository{
		Booking:      &bookingRepo{base},
		Idempotency:  &idempotencyRepo{base},
		History:      &historyRepo{base},
		Outbox:       &outboxRepo{base},
		Assignment:   &assignmentRepo{base},
		Activity:     &activityRepo{base},
		Availability: &availabilityRepo{base},
	}
}

// Snapshot returns a copy of the current state.
func (m *Memory) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Mutate runs fn against the live state.
func (m *Memory) Mutate(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

// OutboxByType counts outbox rows per event type.
func (m *Memory) OutboxByType() map[string]int {
	s := m.Snapshot()
	out := make(map[string]int)
	for _, evt := range s.Outbox {
		out[evt.EventType]++
	}
	return out
}

type table struct {
	m    *Memory
	inTx bool
}

func (t *table) with(fn func(s *State)) {
	if !t.inTx {
		t.m.mu.Lock()
		defer t.m.mu.Unlock()
	}
	fn(t.m.state)
}

type bookingRepo struct{ *table }

func (r *bookingRepo) Create(_ context.Context, b *entity.Booking) error {
	var err error
	r.with(func(s *State) {
		for _, existing := range s.Bookings {
			if existing.TenantID != b.TenantID {
				continue
			}
			if b.ClientRequestID != nil && existing.ClientRequestID != nil && *existing.ClientRequestID == *b.ClientRequestID {
				err = repository.ErrDuplicateKey
				return
			}
			if existing.Reference == b.Reference {
				err = repository.ErrDuplicateReference
				return
			}
		}
		s.Bookings[b.ID] = *b
	})
	return err
}

func (r *bookingRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*entity.Booking, error) {
	var out *entity.Booking
	r.with(func(s *State) {
		if b, ok := s.Bookings[id]; ok && b.TenantID == tenantID {
			out = &b
		}
	})
	return out, nil
}

func (r *bookingRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Booking, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *bookingRepo) UpdateStatusIfMatch(_ context.Context, tenantID, id uuid.UUID, from, to entity.BookingStatus, at time.Time) (bool, error) {
	var ok bool
	r.with(func(s *State) {
		if r.m.BookingWriteHook != nil {
			r.m.BookingWriteHook(s, id)
		}
		b, found := s.Bookings[id]
		if !found || b.TenantID != tenantID || b.Status != from {
			return
		}
		b.Status = to
		b.UpdatedAt = at
		s.Bookings[id] = b
		ok = true
	})
	return ok, nil
}

type idempotencyRepo struct{ *table }

func (r *idempotencyRepo) FindBookingID(_ context.Context, tenantID uuid.UUID, key string) (uuid.UUID, bool, error) {
	var (
		id uuid.UUID
		ok bool
	)
	r.with(func(s *State) {
		id, ok = s.Idempotency[idemKey{tenantID, key}]
		if !ok && r.m.IdempotencyMissHook != nil {
			r.m.IdempotencyMissHook(s, tenantID, key)
		}
	})
	return id, ok, nil
}

func (r *idempotencyRepo) Create(_ context.Context, rec *entity.IdempotencyRecord) error {
	var err error
	r.with(func(s *State) {
		k := idemKey{rec.TenantID, rec.ClientRequestID}
		if _, exists := s.Idempotency[k]; exists {
			err = repository.ErrDuplicateKey
			return
		}
		s.Idempotency[k] = rec.BookingID
	})
	return err
}

type historyRepo struct{ *table }

func (r *historyRepo) Append(_ context.Context, h *entity.BookingStatusHistory) error {
	r.with(func(s *State) { s.History = append(s.History, *h) })
	return nil
}

func (r *historyRepo) ListByBookingID(_ context.Context, tenantID, bookingID uuid.UUID) ([]*entity.BookingStatusHistory, error) {
	var out []*entity.BookingStatusHistory
	r.with(func(s *State) {
		for _, h := range s.History {
			if h.TenantID == tenantID && h.BookingID == bookingID {
				h := h
				out = append(out, &h)
			}
		}
	})
	return out, nil
}

type outboxRepo struct{ *table }

func (r *outboxRepo) Insert(_ context.Context, evt *entity.OutboxEvent) error {
	r.with(func(s *State) { s.Outbox = append(s.Outbox, *evt) })
	return nil
}

func (r *outboxRepo) ClaimPending(_ context.Context, limit int, now time.Time) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	r.with(func(s *State) {
		idx := make([]int, 0)
		for i, evt := range s.Outbox {
			if evt.Status == entity.OutboxStatusPending && !evt.AvailableAt.After(now) {
				idx = append(idx, i)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return s.Outbox[idx[a]].CreatedAt.Before(s.Outbox[idx[b]].CreatedAt)
		})
		if len(idx) > limit {
			idx = idx[:limit]
		}
		for _, i := range idx {
			claimedAt := now
			s.Outbox[i].Status = entity.OutboxStatusProcessing
			s.Outbox[i].ClaimedAt = &claimedAt
			evt := s.Outbox[i]
			out = append(out, &evt)
		}
	})
	return out, nil
}

func (r *outboxRepo) update(id uuid.UUID, fn func(evt *entity.OutboxEvent)) {
	r.with(func(s *State) {
		for i := range s.Outbox {
			if s.Outbox[i].ID == id && s.Outbox[i].Status == entity.OutboxStatusProcessing {
				fn(&s.Outbox[i])
			}
		}
	})
}

func (r *outboxRepo) MarkPublished(_ context.Context, id uuid.UUID, at time.Time) error {
	r.update(id, func(evt *entity.OutboxEvent) {
		evt.Status = entity.OutboxStatusPublished
		evt.PublishedAt = &at
		evt.LastError = nil
	})
	return nil
}

func (r *outboxRepo) Requeue(_ context.Context, id uuid.UUID, retryCount int, availableAt time.Time, lastError string) error {
	r.update(id, func(evt *entity.OutboxEvent) {
		evt.Status = entity.OutboxStatusPending
		evt.RetryCount = retryCount
		evt.AvailableAt = availableAt
		evt.LastError = &lastError
		evt.ClaimedAt = nil
	})
	return nil
}

func (r *outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, lastError string) error {
	r.update(id, func(evt *entity.OutboxEvent) {
		evt.Status = entity.OutboxStatusFailed
		evt.RetryCount = retryCount
		evt.LastError = &lastError
	})
	return nil
}

func (r *outboxRepo) ResetStuck(_ context.Context, olderThan time.Time) (int64, error) {
	var n int64
	r.with(func(s *State) {
		for i := range s.Outbox {
			evt := &s.Outbox[i]
			if evt.Status == entity.OutboxStatusProcessing && evt.ClaimedAt != nil && evt.ClaimedAt.Before(olderThan) {
				evt.Status = entity.OutboxStatusPending
				evt.ClaimedAt = nil
				n++
			}
		}
	})
	return n, nil
}

func (r *outboxRepo) ListFailed(_ context.Context, limit int) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	r.with(func(s *State) {
		for _, evt := range s.Outbox {
			if evt.Status == entity.OutboxStatusFailed && len(out) < limit {
				evt := evt
				out = append(out, &evt)
			}
		}
	})
	return out, nil
}

func (r *outboxRepo) ListByAggregate(_ context.Context, tenantID, aggregateID uuid.UUID) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	r.with(func(s *State) {
		for _, evt := range s.Outbox {
			if evt.TenantID == tenantID && evt.AggregateID == aggregateID {
				evt := evt
				out = append(out, &evt)
			}
		}
	})
	return out, nil
}

type assignmentRepo struct{ *table }

func (r *assignmentRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error) {
	var out *entity.Assignment
	r.with(func(s *State) {
		if a, ok := s.Assignments[id]; ok && a.TenantID == tenantID {
			out = &a
		}
	})
	return out, nil
}

func (r *assignmentRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*entity.Assignment, error) {
	return r.FindByID(ctx, tenantID, id)
}

func (r *assignmentRepo) FindByBookingID(_ context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error) {
	var out *entity.Assignment
	r.with(func(s *State) {
		for _, a := range s.Assignments {
			if a.TenantID == tenantID && a.BookingID == bookingID {
				a := a
				out = &a
				return
			}
		}
	})
	return out, nil
}

func (r *assignmentRepo) FindByBookingIDForUpdate(ctx context.Context, tenantID, bookingID uuid.UUID) (*entity.Assignment, error) {
	return r.FindByBookingID(ctx, tenantID, bookingID)
}

func (r *assignmentRepo) ReplaceForBooking(ctx context.Context, a *entity.Assignment) (*entity.Assignment, error) {
	prior, _ := r.FindByBookingID(ctx, a.TenantID, a.BookingID)
	r.with(func(s *State) {
		if prior != nil {
			a.ID = prior.ID
			a.CreatedAt = prior.CreatedAt
		}
		a.CompletedAt = nil
		s.Assignments[a.ID] = *a
	})
	return prior, nil
}

func (r *assignmentRepo) UpdateStatus(_ context.Context, tenantID, id uuid.UUID, status entity.AssignmentStatus, completedAt *time.Time, at time.Time) error {
	var err error
	r.with(func(s *State) {
		a, ok := s.Assignments[id]
		if !ok || a.TenantID != tenantID {
			err = errNotFound
			return
		}
		a.Status = status
		if completedAt != nil {
			a.CompletedAt = completedAt
		}
		a.UpdatedAt = at
		s.Assignments[id] = a
	})
	return err
}

func (r *assignmentRepo) ClaimExpiredOffers(_ context.Context, cutoff time.Time, limit int) ([]*entity.Assignment, error) {
	var out []*entity.Assignment
	r.with(func(s *State) {
		for _, a := range s.Assignments {
			if a.Status == entity.AssignmentStatusOffered && a.OfferedAt.Before(cutoff) {
				a := a
				out = append(out, &a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].OfferedAt.Before(out[j].OfferedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type activityRepo struct{ *table }

func (r *activityRepo) Append(_ context.Context, a *entity.AssignmentActivity) error {
	r.with(func(s *State) { s.Activity = append(s.Activity, *a) })
	return nil
}

func (r *activityRepo) ListByAssignmentID(_ context.Context, tenantID, assignmentID uuid.UUID) ([]*entity.AssignmentActivity, error) {
	var out []*entity.AssignmentActivity
	r.with(func(s *State) {
		for _, a := range s.Activity {
			if a.TenantID == tenantID && a.AssignmentID == assignmentID {
				a := a
				out = append(out, &a)
			}
		}
	})
	return out, nil
}

type availabilityRepo struct{ *table }

func (r *availabilityRepo) Get(_ context.Context, tenantID, driverID uuid.UUID) (*entity.DriverAvailability, error) {
	var out *entity.DriverAvailability
	r.with(func(s *State) {
		if a, ok := s.Availability[availKey{tenantID, driverID}]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *availabilityRepo) Set(_ context.Context, tenantID, driverID uuid.UUID, status entity.DriverStatus, at time.Time) error {
	r.with(func(s *State) {
		s.Availability[availKey{tenantID, driverID}] = entity.DriverAvailability{
			TenantID:  tenantID,
			DriverID:  driverID,
			Status:    status,
			UpdatedAt: at,
		}
	})
	return nil
}

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
