package utils

import (
	"context"

	"identity-core/internal/data/entity"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the resolved identity attached to an authenticated request.
type Principal struct {
	ID               uuid.UUID       `json:"id"`
	Email            string          `json:"email"`
	Username         string          `json:"username"`
	Role             entity.UserRole `json:"role"`
	TwoFactorEnabled bool            `json:"two_factor_enabled"`
}

func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == entity.RoleAdmin
}

// PrincipalFromUser copies the fields downstream handlers may rely on.
func PrincipalFromUser(user *entity.User) *Principal {
	return &Principal{
		ID:               user.ID,
		Email:            user.Email,
		Username:         user.Username,
		Role:             user.Role,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
}

func SetPrincipalContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func GetPrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
