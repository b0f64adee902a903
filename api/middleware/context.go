package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

type contextKey string

const (
	ctxAccountID    contextKey = "account_id"
	ctxRole         contextKey = "actor_role"
	ctxSession      contextKey = "guest_session"
	ctxCartIdentity contextKey = "cart_identity"
)

// AccountIDFromContext returns the authenticated account, if any.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	v, ok := ctx.Value(ctxAccountID).(uuid.UUID)
	if !ok || v == uuid.Nil {
		return uuid.Nil, false
	}
	return v, true
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func SessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSession).(string); ok {
		return v
	}
	return ""
}

// CartIdentityFromContext returns the identity resolved by CartIdentity.
func CartIdentityFromContext(ctx context.Context) (cart.Identity, bool) {
	if ctx == nil {
		return cart.Identity{}, false
	}
	v, ok := ctx.Value(ctxCartIdentity).(cart.Identity)
	return v, ok
}

// WithAccount injects the authenticated account and role into the context.
func WithAccount(ctx context.Context, accountID uuid.UUID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAccountID, accountID)
	return context.WithValue(ctx, ctxRole, role)
}

// WithSession injects the guest session handle into the context.
func WithSession(ctx context.Context, session string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSession, session)
}

func withCartIdentity(ctx context.Context, identity cart.Identity) context.Context {
	return context.WithValue(ctx, ctxCartIdentity, identity)
}
