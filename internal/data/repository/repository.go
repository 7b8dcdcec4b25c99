package repository

import (
	"context"
	"errors"

	"transport-booking/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var (
	// ErrDuplicateKey is returned when an insert hits a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrDuplicateReference is returned when a new booking's human-readable
	// reference is already taken in the tenant. The caller picks a new one.
	ErrDuplicateReference = errors.New("duplicate booking reference")
)

type Repository struct {
	Booking      BookingRepository
	Idempotency  IdempotencyRepository
	History      StatusHistoryRepository
	Outbox       OutboxRepository
	Assignment   AssignmentRepository
	Activity     ActivityRepository
	Availability AvailabilityRepository
}

func NewRepository(db database.DBTX, log *zap.Logger) *Repository {
	return &Repository{
		Booking:      NewBookingRepository(db, log),
		Idempotency:  NewIdempotencyRepository(db, log),
		History:      NewStatusHistoryRepository(db, log),
		Outbox:       NewOutboxRepository(db, log),
		Assignment:   NewAssignmentRepository(db, log),
		Activity:     NewActivityRepository(db, log),
		Availability: NewAvailabilityRepository(db, log),
	}
}

// Transactor runs fn with repositories bound to a single transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(repo *Repository) error) error
}

// Store owns the pool. Its embedded Repository runs outside any transaction.
type Store struct {
	*Repository
	db  database.PgxIface
	log *zap.Logger
}

func NewStore(db database.PgxIface, log *zap.Logger) *Store {
	return &Store{
		Repository: NewRepository(db, log),
		db:         db,
		log:        log,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(repo *Repository) error) error {
	return database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewRepository(tx, s.log))
	})
}
