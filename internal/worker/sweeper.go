package worker

import (
	"context"
	"time"

	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OfferSweeper expires offers nobody answered within OfferTimeout.
type OfferSweeper struct {
	dispatch usecase.DispatchService
	cfg      utils.SweeperConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewOfferSweeper(dispatch usecase.DispatchService, cfg utils.SweeperConfig, log *zap.Logger) *OfferSweeper {
	return &OfferSweeper{
		dispatch: dispatch,
		cfg:      cfg,
		log:      log.With(zap.String("worker", "offer_sweeper")),
		now:      time.Now,
	}
}

func (s *OfferSweeper) Run(ctx context.Context) {
	s.log.Info("Offer sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("offer_timeout", s.cfg.OfferTimeout),
	)
	runEvery(ctx, s.cfg.Interval, s.log, func(ctx context.Context) {
		if _, err := s.Tick(ctx); err != nil {
			s.log.Error("Offer sweep failed", zap.Error(err))
		}
	})
}

func (s *OfferSweeper) Tick(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "dispatch.sweeper.tick")
	defer span.End()

	cutoff := s.now().UTC().Add(-s.cfg.OfferTimeout)
	n, err := s.dispatch.ExpireOffers(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("offers.expired", n))
	if n > 0 {
		s.log.Info("Offers expired", zap.Int("count", n))
	}
	return n, nil
}
