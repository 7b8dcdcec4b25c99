package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Booking  *BookingHandler
	Dispatch *DispatchHandler
	Outbox   *OutboxHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:  NewBookingHandler(service.Booking, log),
		Dispatch: NewDispatchHandler(service.Dispatch, log),
		Outbox:   NewOutboxHandler(service.Outbox, log),
	}
}

// requestScope pulls the tenant and actor set by the middleware. It writes
// the error response itself when either is missing.
func requestScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, entity.Actor, bool) {
	tenantID, ok := utils.GetTenantIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Tenant required")
		return uuid.Nil, entity.Actor{}, false
	}

	actorID, role, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Actor required")
		return uuid.Nil, entity.Actor{}, false
	}
	return tenantID, entity.Actor{ID: actorID, Role: entity.Role(role)}, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes and validates a JSON body. An empty body is accepted
// when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			utils.ResponseBadRequest(w, "Invalid request body", nil)
			return false
		}
	}

	if validationErrors := utils.ValidateStruct(dst); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}

// handleServiceError maps use case errors onto HTTP statuses and error codes
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation)}

	var (
		status  int
		errCode string
	)
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		status, errCode = http.StatusNotFound, utils.CodeNotFound
	case errors.Is(err, usecase.ErrValidation):
		status, errCode = http.StatusBadRequest, utils.CodeValidation
	case errors.Is(err, usecase.ErrInvalidTransition):
		status, errCode = http.StatusBadRequest, utils.CodeInvalidTransition
	case errors.Is(err, usecase.ErrInvalidState):
		status, errCode = http.StatusBadRequest, utils.CodeInvalidState
	case errors.Is(err, usecase.ErrImmutable):
		status, errCode = http.StatusBadRequest, utils.CodeImmutable
	case errors.Is(err, usecase.ErrDriverUnavailable):
		status, errCode = http.StatusBadRequest, utils.CodeDriverUnavailable
	case errors.Is(err, usecase.ErrConcurrentModification):
		status, errCode = http.StatusConflict, utils.CodeConcurrentModification
	case errors.Is(err, usecase.ErrDriverMismatch),
		errors.Is(err, usecase.ErrForbiddenRole):
		status, errCode = http.StatusForbidden, utils.CodeForbidden
	default:
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	log.Warn(operation+" rejected", append(fields, zap.String("code", errCode))...)
	utils.ResponseError(w, status, errCode, err.Error(), nil)
}
