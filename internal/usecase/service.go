package usecase

import (
	"context"
	"fmt"

	"transport-booking/internal/data/repository"
	"transport-booking/internal/dto/response"

	"go.uber.org/zap"
)

type Service struct {
	Booking   BookingService
	Dispatch  DispatchService
	Outbox    OutboxService
	Projector *Projector
}

func NewService(tx repository.Transactor, repo *repository.Repository, log *zap.Logger) *Service {
	booking := NewBookingService(tx, repo, log)
	dispatch := NewDispatchService(tx, repo, NewAvailabilityEligibility(repo.Availability), log)
	return &Service{
		Booking:   booking,
		Dispatch:  dispatch,
		Outbox:    NewOutboxService(repo, log),
		Projector: NewProjector(booking, dispatch, nil, log),
	}
}

// OutboxService is the operator view of undeliverable events.
type OutboxService interface {
	ListFailed(ctx context.Context, limit int) ([]response.OutboxEventResponse, error)
}

type outboxService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewOutboxService(repo *repository.Repository, log *zap.Logger) OutboxService {
	return &outboxService{
		repo: repo,
		log:  log.With(zap.String("service", "outbox")),
	}
}

func (s *outboxService) ListFailed(ctx context.Context, limit int) ([]response.OutboxEventResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.repo.Outbox.ListFailed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list failed outbox events: %w", err)
	}

	out := make([]response.OutboxEventResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, response.OutboxEventToResponse(row))
	}
	return out, nil
}
