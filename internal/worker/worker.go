// Package worker holds the background pollers: the outbox relay and the
// offer expiry sweeper. Both are driven by Run on an interval, and tests call
// Tick directly.
package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("transport-booking/worker")

// runEvery calls tick every interval until ctx is cancelled. A tick that has
// started runs to completion even if ctx is cancelled meanwhile.
func runEvery(ctx context.Context, interval time.Duration, log *zap.Logger, tick func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker stopped")
			return
		case <-ticker.C:
			tick(context.WithoutCancel(ctx))
		}
	}
}
