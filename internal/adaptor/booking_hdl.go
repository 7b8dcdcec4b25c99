package adaptor

import (
	"net/http"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/dto/request"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"go.uber.org/zap"
)

type BookingHandler struct {
	service usecase.BookingService
	log     *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings. A replayed client_request_id
// answers 200 with the original booking id instead of 201.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requestScope(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	result, err := h.service.CreateBooking(r.Context(), tenantID, &req)
	if err != nil {
		handleServiceError(h.log, w, err, "create booking")
		return
	}

	if !result.Created {
		utils.ResponseSuccess(w, "duplicate request", result)
		return
	}
	utils.ResponseCreated(w, "success", result)
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requestScope(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	booking, err := h.service.GetBooking(r.Context(), tenantID, bookingID)
	if err != nil {
		handleServiceError(h.log, w, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}

// ListHistory handles GET /api/bookings/{id}/history
func (h *BookingHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requestScope(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	history, err := h.service.ListHistory(r.Context(), tenantID, bookingID)
	if err != nil {
		handleServiceError(h.log, w, err, "list booking history")
		return
	}

	utils.ResponseSuccess(w, "success", history)
}

// Transition handles POST /api/bookings/{id}/transitions
func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := requestScope(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.TransitionRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	booking, err := h.service.Transition(r.Context(), tenantID, bookingID, entity.BookingStatus(req.Status), actor, req.Reason)
	if err != nil {
		handleServiceError(h.log, w, err, "transition booking")
		return
	}

	utils.ResponseSuccess(w, "success", booking)
}
