package adaptor

import (
	"net/http"

	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"go.uber.org/zap"
)

type OutboxHandler struct {
	service usecase.OutboxService
	log     *zap.Logger
}

func NewOutboxHandler(service usecase.OutboxService, log *zap.Logger) *OutboxHandler {
	return &OutboxHandler{
		service: service,
		log:     log.With(zap.String("handler", "outbox")),
	}
}

// ListFailed handles GET /api/admin/outbox/failed?limit=N (admin only)
func (h *OutboxHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	limit := utils.ParseInt(r.URL.Query().Get("limit"), 100)

	events, err := h.service.ListFailed(r.Context(), limit)
	if err != nil {
		handleServiceError(h.log, w, err, "list failed outbox events")
		return
	}

	utils.ResponseSuccess(w, "success", events)
}
