package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"transport-booking/internal/data/entity"
	"transport-booking/internal/dto/request"
	"transport-booking/internal/dto/response"
	"transport-booking/internal/usecase"
	"transport-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubBooking struct {
	usecase.BookingService

	created     *response.CreateBookingResponse
	err         error
	gotTo       entity.BookingStatus
	gotActor    entity.Actor
	gotTenantID uuid.UUID
}

func (s *stubBooking) CreateBooking(_ context.Context, tenantID uuid.UUID, _ *request.CreateBookingRequest) (*response.CreateBookingResponse, error) {
	s.gotTenantID = tenantID
	return s.created, s.err
}

func (s *stubBooking) Transition(_ context.Context, tenantID, bookingID uuid.UUID, to entity.BookingStatus, actor entity.Actor, _ *string) (*response.BookingResponse, error) {
	s.gotTenantID, s.gotTo, s.gotActor = tenantID, to, actor
	if s.err != nil {
		return nil, s.err
	}
	return &response.BookingResponse{ID: bookingID.String(), Status: to}, nil
}

type stubDispatch struct {
	usecase.DispatchService

	err      error
	reason   *string
	driverID uuid.UUID
}

func (s *stubDispatch) Accept(_ context.Context, _, assignmentID uuid.UUID, _ entity.Actor, reason *string) (*response.AssignmentResponse, error) {
	s.reason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &response.AssignmentResponse{ID: assignmentID.String(), Status: entity.AssignmentStatusAccepted}, nil
}

func (s *stubDispatch) SetAvailability(_ context.Context, _, driverID uuid.UUID, status entity.DriverStatus) (*response.AvailabilityResponse, error) {
	s.driverID = driverID
	return &response.AvailabilityResponse{DriverID: driverID.String(), Status: status}, nil
}

type responseBody struct {
	Status  bool              `json:"status"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func scopedRequest(t *testing.T, method, target, body string, tenantID uuid.UUID, actor entity.Actor, params map[string]string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := utils.SetTenantContext(req.Context(), tenantID)
	ctx = utils.SetActorContext(ctx, actor.ID, string(actor.Role))

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return req.WithContext(ctx)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseBody {
	t.Helper()
	var body responseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const createBody = `{
	"client_request_id": "req-1",
	"customer_name": "Ada Rider",
	"customer_email": "ada@example.com",
	"pickup_address": "1 Harbour Rd",
	"dropoff_address": "Airport T2",
	"pickup_at": "2026-03-02T12:00:00Z",
	"total_price_minor": 4500,
	"currency": "EUR"
}`

func TestCreateBookingStatusCodes(t *testing.T) {
	tenantID := uuid.New()
	actor := entity.Actor{ID: "c-1", Role: entity.RoleCustomer}

	tests := []struct {
		name    string
		body    string
		created *response.CreateBookingResponse
		want    int
	}{
		{"new booking", createBody, &response.CreateBookingResponse{BookingID: uuid.NewString(), Created: true}, http.StatusCreated},
		{"replayed request", createBody, &response.CreateBookingResponse{BookingID: uuid.NewString(), Created: false}, http.StatusOK},
		{"malformed json", `{"customer_name":`, nil, http.StatusBadRequest},
		{"bad currency", strings.Replace(createBody, `"EUR"`, `"euro"`, 1), nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBooking{created: tt.created}
			h := NewBookingHandler(svc, zap.NewNop())

			rec := httptest.NewRecorder()
			h.CreateBooking(rec, scopedRequest(t, http.MethodPost, "/api/bookings", tt.body, tenantID, actor, nil))

			assert.Equal(t, tt.want, rec.Code)
			if tt.created != nil {
				assert.Equal(t, tenantID, svc.gotTenantID)
				var data response.CreateBookingResponse
				require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
				assert.Equal(t, tt.created.BookingID, data.BookingID)
			}
		})
	}
}

func TestCreateBookingReportsFieldErrors(t *testing.T) {
	h := NewBookingHandler(&stubBooking{}, zap.NewNop())
	body := strings.Replace(createBody, `"ada@example.com"`, `"not-an-email"`, 1)

	rec := httptest.NewRecorder()
	h.CreateBooking(rec, scopedRequest(t, http.MethodPost, "/api/bookings", body, uuid.New(), entity.Actor{ID: "c-1", Role: entity.RoleCustomer}, nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, utils.CodeValidation, got.Code)
	assert.Equal(t, "Invalid email format", got.Errors["CustomerEmail"])
}

func TestTransitionPassesActorAndTarget(t *testing.T) {
	svc := &stubBooking{}
	h := NewBookingHandler(svc, zap.NewNop())
	actor := entity.Actor{ID: "disp-1", Role: entity.RoleDispatcher}
	bookingID := uuid.New()

	rec := httptest.NewRecorder()
	h.Transition(rec, scopedRequest(t, http.MethodPost, "/", `{"status":"CONFIRMED"}`, uuid.New(), actor, map[string]string{"id": bookingID.String()}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.BookingStatusConfirmed, svc.gotTo)
	assert.Equal(t, actor, svc.gotActor)
}

func TestTransitionRejectsBadInput(t *testing.T) {
	h := NewBookingHandler(&stubBooking{}, zap.NewNop())
	actor := entity.Actor{ID: "disp-1", Role: entity.RoleDispatcher}

	rec := httptest.NewRecorder()
	h.Transition(rec, scopedRequest(t, http.MethodPost, "/", `{"status":"CONFIRMED"}`, uuid.New(), actor, map[string]string{"id": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Transition(rec, scopedRequest(t, http.MethodPost, "/", `{"status":"FLYING"}`, uuid.New(), actor, map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDriverActionAcceptsEmptyBody(t *testing.T) {
	svc := &stubDispatch{}
	h := NewDispatchHandler(svc, zap.NewNop())
	driver := entity.Actor{ID: uuid.NewString(), Role: entity.RoleDriver}
	params := map[string]string{"id": uuid.NewString()}

	rec := httptest.NewRecorder()
	h.Accept(rec, scopedRequest(t, http.MethodPost, "/", "", uuid.New(), driver, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.reason)

	rec = httptest.NewRecorder()
	h.Accept(rec, scopedRequest(t, http.MethodPost, "/", `{"reason":"on my way"}`, uuid.New(), driver, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.reason)
	assert.Equal(t, "on my way", *svc.reason)
}

func TestSetAvailabilityOwnership(t *testing.T) {
	svc := &stubDispatch{}
	h := NewDispatchHandler(svc, zap.NewNop())
	driverID := uuid.New()
	params := map[string]string{"id": driverID.String()}
	body := `{"status":"OFFLINE"}`

	rec := httptest.NewRecorder()
	other := entity.Actor{ID: uuid.NewString(), Role: entity.RoleDriver}
	h.SetAvailability(rec, scopedRequest(t, http.MethodPut, "/", body, uuid.New(), other, params))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	self := entity.Actor{ID: driverID.String(), Role: entity.RoleDriver}
	h.SetAvailability(rec, scopedRequest(t, http.MethodPut, "/", body, uuid.New(), self, params))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, driverID, svc.driverID)
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{usecase.ErrNotFound, http.StatusNotFound, utils.CodeNotFound},
		{usecase.ErrValidation, http.StatusBadRequest, utils.CodeValidation},
		{usecase.ErrInvalidTransition, http.StatusBadRequest, utils.CodeInvalidTransition},
		{usecase.ErrInvalidState, http.StatusBadRequest, utils.CodeInvalidState},
		{usecase.ErrImmutable, http.StatusBadRequest, utils.CodeImmutable},
		{usecase.ErrDriverUnavailable, http.StatusBadRequest, utils.CodeDriverUnavailable},
		{usecase.ErrConcurrentModification, http.StatusConflict, utils.CodeConcurrentModification},
		{usecase.ErrDriverMismatch, http.StatusForbidden, utils.CodeForbidden},
		{usecase.ErrForbiddenRole, http.StatusForbidden, utils.CodeForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError, utils.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleServiceError(zap.NewNop(), rec, fmt.Errorf("booking 42: %w", tt.err), "test")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec).Code)
		})
	}
}

func TestRequestScopeRequiresTenant(t *testing.T) {
	h := NewBookingHandler(&stubBooking{}, zap.NewNop())

	rec := httptest.NewRecorder()
	h.CreateBooking(rec, httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(createBody)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
