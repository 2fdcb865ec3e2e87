package middleware

import (
	"context"
	"net/http"
	"strings"

	"identity-core/internal/data/entity"
	"identity-core/pkg/apperror"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
)

// TokenHeader is the fallback header for clients that cannot set Authorization.
const TokenHeader = "x-auth-token"

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type IdentityFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

// Guard resolves bearer tokens into principals. It does not log: activity
// logging belongs to the business logic downstream.
type Guard struct {
	tokens TokenVerifier
	users  IdentityFinder
}

func NewGuard(tokens TokenVerifier, users IdentityFinder) *Guard {
	return &Guard{tokens: tokens, users: users}
}

// ExtractToken applies the header precedence: "Authorization: Bearer <t>"
// (prefix matched case-insensitively), then the raw Authorization value,
// then x-auth-token.
func ExtractToken(h http.Header) string {
	if auth := strings.TrimSpace(h.Get("Authorization")); auth != "" {
		if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
			return strings.TrimSpace(auth[7:])
		}
		return auth
	}
	return strings.TrimSpace(h.Get(TokenHeader))
}

// Resolve returns the live identity behind the request token. Every failure
// other than a store error is reported as unauthenticated.
func (g *Guard) Resolve(ctx context.Context, h http.Header) (*utils.Principal, error) {
	token := ExtractToken(h)
	if token == "" {
		return nil, apperror.New(apperror.CodeUnauthenticated, "missing token")
	}

	id, err := g.tokens.Verify(token)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeUnauthenticated, "token rejected", err)
	}

	user, err := g.users.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Wrap(apperror.CodeUpstream, "resolve token identity", err)
	}
	if user == nil || user.DeletedAt != nil {
		return nil, apperror.New(apperror.CodeUnauthenticated, "token identity no longer exists")
	}

	return utils.PrincipalFromUser(user), nil
}

// Authenticate rejects requests without a valid token and attaches the
// principal to the request context.
func (g *Guard) Authenticate() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := g.Resolve(r.Context(), r.Header)
			if err != nil {
				utils.ResponseError(w, err)
				return
			}
			ctx := utils.SetPrincipalContext(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := utils.GetPrincipalFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Unauthorized")
				return
			}
			if !principal.IsAdmin() {
				utils.ResponseForbidden(w, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin admits administrators and principals whose id equals the
// target id extracted from the request.
func RequireSelfOrAdmin(targetID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := utils.GetPrincipalFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Unauthorized")
				return
			}
			if !principal.IsAdmin() && !IsSelf(principal, targetID(r)) {
				utils.ResponseForbidden(w, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsSelf compares a raw id against the principal, ignoring case and format
// differences of the uuid text.
func IsSelf(p *utils.Principal, rawID string) bool {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return false
	}
	return p != nil && p.ID == id
}
