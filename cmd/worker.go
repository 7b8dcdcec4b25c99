package cmd

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner is a background loop that returns once ctx is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

// Workers runs every runner until ctx is cancelled and waits for all of them
// to return.
func Workers(ctx context.Context, log *zap.Logger, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			r.Run(ctx)
			return nil
		})
	}

	log.Info("Workers started", zap.Int("count", len(runners)))
	return g.Wait()
}
