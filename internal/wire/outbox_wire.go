package wire

import (
	"transport-booking/internal/adaptor"
	"transport-booking/internal/data/entity"
	"transport-booking/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireOutbox(r chi.Router, outboxHandler *adaptor.OutboxHandler, log *zap.Logger) {
	r.Route("/admin/outbox", func(r chi.Router) {
		r.Use(middleware.RequireRole(log, entity.RoleAdmin))

		r.Get("/failed", outboxHandler.ListFailed)
	})
}
