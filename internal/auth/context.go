package auth

import (
	"context"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

type ctxKey struct{}

// WithUser stores the signed-in user on the context.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the user stored by WithUser, or nil.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(ctxKey{}).(*domain.User)
	return u
}
