package middleware

import (
	"net/http"

	"transport-booking/internal/data/entity"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderTenantID  = "X-Tenant-ID"
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Tenant middleware resolves the tenant from X-Tenant-ID. Authentication
// happens upstream, the header is trusted as is.
func Tenant(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(HeaderTenantID)
			if raw == "" {
				utils.ResponseUnauthorized(w, "Missing tenant header")
				return
			}

			tenantID, err := uuid.Parse(raw)
			if err != nil || tenantID == uuid.Nil {
				logger.Warn("Invalid tenant header",
					zap.String("tenant_id", raw),
					zap.String("path", r.URL.Path))
				utils.ResponseBadRequest(w, "Invalid tenant header", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetTenantContext(r.Context(), tenantID)))
		})
	}
}

// Actor middleware reads the caller identity. System is reserved for
// in-process workers and is rejected here.
func Actor(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := r.Header.Get(HeaderActorID)
			role := entity.Role(r.Header.Get(HeaderActorRole))
			if actorID == "" || role == "" {
				utils.ResponseUnauthorized(w, "Missing actor headers")
				return
			}

			switch role {
			case entity.RoleCustomer, entity.RoleDispatcher, entity.RoleDriver, entity.RoleAdmin:
			default:
				logger.Warn("Unknown actor role",
					zap.String("actor_id", actorID),
					zap.String("role", string(role)))
				utils.ResponseForbidden(w, "Unknown actor role")
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetActorContext(r.Context(), actorID, string(role))))
		})
	}
}

// RequireRole rejects callers whose role is not one of roles. It must run
// after Actor.
func RequireRole(logger *zap.Logger, roles ...entity.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID, role, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			actor := entity.Actor{ID: actorID, Role: entity.Role(role)}
			if !actor.HasRole(roles...) {
				logger.Warn("Role check: access denied",
					zap.String("actor", actor.String()),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Insufficient role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
