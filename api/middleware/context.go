package middleware

import (
	"context"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxRole      contextKey = "actor_role"
	ctxRequestID contextKey = "request_id"
)

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actorID string, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxRole, role)
}
