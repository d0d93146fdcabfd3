package auth

import (
	"context"
	"slices"
)

type contextKey struct{}

type AuthContext struct {
	AccountID string
	SessionID int64
	Email     string
	Role      string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func AccountID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.AccountID
}

// HasRole reports whether the signed-in account holds any of roles.
func HasRole(ctx context.Context, roles ...string) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return slices.Contains(roles, ac.Role)
}

func IsAdmin(ctx context.Context) bool {
	return HasRole(ctx, "admin")
}
