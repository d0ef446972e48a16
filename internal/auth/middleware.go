package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/request-desk/internal/domain"
	"github.com/spec-kit/request-desk/internal/repository"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Actor domain.Actor
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens *TokenManager
	store  repository.Store
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, store repository.Store) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, store: store}
}

// Handle enforces authentication for protected routes. The role always
// comes from the stored user, never from the token.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.store.Users().GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.IsActive {
		return apperrors.NewUnauthorized("user is inactive")
	}

	c.Locals(principalKey, &Principal{User: user, Actor: domain.ActorFromUser(user)})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ActorFromContext returns the acting identity or an unauthorized error.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor, nil
}
