package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	TenantIDKey  contextKey = "tenant_id"
	ActorIDKey   contextKey = "actor_id"
	ActorRoleKey contextKey = "actor_role"
)

func GetTenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(TenantIDKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return tenantID, true
}

func SetTenantContext(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// GetActorFromContext returns the actor id and role set by the actor middleware.
func GetActorFromContext(ctx context.Context) (string, string, bool) {
	id, ok := ctx.Value(ActorIDKey).(string)
	if !ok || id == "" {
		return "", "", false
	}
	role, _ := ctx.Value(ActorRoleKey).(string)
	return id, role, true
}

func SetActorContext(ctx context.Context, actorID, role string) context.Context {
	ctx = context.WithValue(ctx, ActorIDKey, actorID)
	ctx = context.WithValue(ctx, ActorRoleKey, role)
	return ctx
}
