package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/sensorgrid/devicehub-backend/pkg/rbac"
)

type contextKey string

const (
	ctxActor    contextKey = "actor"
	ctxAccessID contextKey = "access_id"
)

// ActorFromContext returns the authenticated caller. ok is false on public routes.
func ActorFromContext(ctx context.Context) (rbac.Actor, bool) {
	if ctx == nil {
		return rbac.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(rbac.Actor)
	if !ok || actor.ID == uuid.Nil {
		return rbac.Actor{}, false
	}
	return actor, true
}

// AccessIDFromContext returns the jti of the presented access token.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithActor injects an authenticated caller, mostly for handler tests.
func WithActor(ctx context.Context, actor rbac.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}
