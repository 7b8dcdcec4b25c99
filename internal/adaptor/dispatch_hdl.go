package adaptor

import (
	"context"
	"net/http"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/dto/request"
	"transport-booking/internal/dto/response"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DispatchHandler struct {
	service usecase.DispatchService
	log     *zap.Logger
}

func NewDispatchHandler(service usecase.DispatchService, log *zap.Logger) *DispatchHandler {
	return &DispatchHandler{
		service: service,
		log:     log.With(zap.String("handler", "dispatch")),
	}
}

// Offer handles POST /api/bookings/{id}/offers
func (h *DispatchHandler) Offer(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := requestScope(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req request.OfferRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	// Both ids were checked by the uuid validator.
	driverID := uuid.MustParse(req.DriverID)
	var vehicleID *uuid.UUID
	if req.VehicleID != nil {
		id := uuid.MustParse(*req.VehicleID)
		vehicleID = &id
	}

	offer, err := h.service.Offer(r.Context(), tenantID, bookingID, driverID, vehicleID, actor, req.Reason)
	if err != nil {
		handleServiceError(h.log, w, err, "offer booking")
		return
	}

	utils.ResponseCreated(w, "success", offer)
}

// GetAssignment handles GET /api/bookings/{id}/assignment
func (h *DispatchHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requestScope(w, r)
	if !ok {
		return
	}
	bookingID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	assignment, err := h.service.GetAssignment(r.Context(), tenantID, bookingID)
	if err != nil {
		handleServiceError(h.log, w, err, "get assignment")
		return
	}

	utils.ResponseSuccess(w, "success", assignment)
}

// ListActivity handles GET /api/assignments/{id}/activity
func (h *DispatchHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := requestScope(w, r)
	if !ok {
		return
	}
	assignmentID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	activity, err := h.service.ListActivity(r.Context(), tenantID, assignmentID)
	if err != nil {
		handleServiceError(h.log, w, err, "list assignment activity")
		return
	}

	utils.ResponseSuccess(w, "success", activity)
}

type assignmentAction func(ctx context.Context, tenantID, assignmentID uuid.UUID, actor entity.Actor, reason *string) (*response.AssignmentResponse, error)

func (h *DispatchHandler) driverAction(action assignmentAction, operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, actor, ok := requestScope(w, r)
		if !ok {
			return
		}
		assignmentID, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}

		var req request.AssignmentActionRequest
		if !decodeBody(w, r, &req, true) {
			return
		}

		assignment, err := action(r.Context(), tenantID, assignmentID, actor, req.Reason)
		if err != nil {
			handleServiceError(h.log, w, err, operation)
			return
		}

		utils.ResponseSuccess(w, "success", assignment)
	}
}

// Accept handles POST /api/assignments/{id}/accept
func (h *DispatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.driverAction(h.service.Accept, "accept assignment")(w, r)
}

// Decline handles POST /api/assignments/{id}/decline
func (h *DispatchHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.driverAction(h.service.Decline, "decline assignment")(w, r)
}

// Start handles POST /api/assignments/{id}/start
func (h *DispatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.driverAction(h.service.Start, "start assignment")(w, r)
}

// Complete handles POST /api/assignments/{id}/complete
func (h *DispatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.driverAction(h.service.Complete, "complete assignment")(w, r)
}

// SetAvailability handles PUT /api/drivers/{id}/availability
func (h *DispatchHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, actor, ok := requestScope(w, r)
	if !ok {
		return
	}
	driverID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	// Drivers may only change their own availability.
	if actor.Role == entity.RoleDriver && actor.ID != driverID.String() {
		utils.ResponseForbidden(w, "Drivers may only update their own availability")
		return
	}

	var req request.SetAvailabilityRequest
	if !decodeBody(w, r, &req, false) {
		return
	}

	availability, err := h.service.SetAvailability(r.Context(), tenantID, driverID, entity.DriverStatus(req.Status))
	if err != nil {
		handleServiceError(h.log, w, err, "set driver availability")
		return
	}

	utils.ResponseSuccess(w, "success", availability)
}
