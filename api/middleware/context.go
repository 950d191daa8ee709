package middleware

import (
	"context"

	"github.com/angelmondragon/personacraft-backend/internal/users"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxIdentity contextKey = "identity"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the identity resolved by Auth.
func IdentityFromContext(ctx context.Context) (users.Identity, bool) {
	if ctx == nil {
		return users.Identity{}, false
	}
	identity, ok := ctx.Value(ctxIdentity).(users.Identity)
	return identity, ok
}

// WithIdentity injects the resolved identity and its user id into the context.
func WithIdentity(ctx context.Context, identity users.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxIdentity, identity)
	return context.WithValue(ctx, ctxUserID, identity.ID)
}
