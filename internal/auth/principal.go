package auth

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Actor converts the principal into the caller the order operations authorize against.
func (p Principal) Actor() domain.Actor {
	return domain.Actor{UserID: p.UserID, Admin: p.IsAdmin()}
}

type contextKey string

const principalKey contextKey = "auth_principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored by the authentication middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
