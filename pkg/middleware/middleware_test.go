package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTenant(t *testing.T) {
	tenantID := uuid.New()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "not-a-uuid", http.StatusBadRequest},
		{"nil uuid", uuid.Nil.String(), http.StatusBadRequest},
		{"valid", tenantID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Tenant(zap.NewNop())(okHandler(t, func(r *http.Request) {
				got, ok := utils.GetTenantIDFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, tenantID, got)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/bookings/x", nil)
			if tt.header != "" {
				req.Header.Set(HeaderTenantID, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestActor(t *testing.T) {
	tests := []struct {
		name string
		id   string
		role string
		want int
	}{
		{"missing id", "", "customer", http.StatusUnauthorized},
		{"missing role", "c-1", "", http.StatusUnauthorized},
		{"system is reserved", "relay", "system", http.StatusForbidden},
		{"unknown role", "c-1", "root", http.StatusForbidden},
		{"driver", "d-1", "driver", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Actor(zap.NewNop())(okHandler(t, func(r *http.Request) {
				id, role, ok := utils.GetActorFromContext(r.Context())
				assert.True(t, ok)
				assert.Equal(t, tt.id, id)
				assert.Equal(t, tt.role, role)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(HeaderActorID, tt.id)
			req.Header.Set(HeaderActorRole, tt.role)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	chain := func(h http.Handler) http.Handler {
		return Actor(zap.NewNop())(RequireRole(zap.NewNop(), entity.RoleAdmin)(h))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/outbox/failed", nil)
	req.Header.Set(HeaderActorID, "d-1")
	req.Header.Set(HeaderActorRole, "dispatcher")
	rec := httptest.NewRecorder()
	chain(okHandler(t, nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set(HeaderActorRole, "admin")
	rec = httptest.NewRecorder()
	chain(okHandler(t, nil)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoverWritesJSON500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Recover(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":false,"message":"Internal server error","code":"INTERNAL"}`, rec.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("PANIC recovered").Len())
}

func TestLoggerRecordsStatusAndTenant(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("{}"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	req.Header.Set(HeaderTenantID, "t-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("HTTP request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.EqualValues(t, http.StatusConflict, fields["status"])
		assert.EqualValues(t, 2, fields["bytes"])
		assert.Equal(t, "t-1", fields["tenant_id"])
	}
}
