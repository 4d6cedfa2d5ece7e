package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/identity"
)

const identityLocal = "identity"

// Auth returns a middleware that resolves the bearer credential through the
// identity provider and stores the resolved identity on the request.
func Auth(provider identity.Provider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		ident, err := provider.Resolve(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
		}

		c.Locals(identityLocal, ident)
		c.Locals("user_id", ident.ID)
		return c.Next()
	}
}

// IdentityFrom extracts the resolved identity stored by Auth.
func IdentityFrom(c *fiber.Ctx) (identity.Identity, bool) {
	ident, ok := c.Locals(identityLocal).(identity.Identity)
	return ident, ok
}

// WithIdentity stores an identity on the request directly; test helper for
// exercising handlers without a provider.
func WithIdentity(ident identity.Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(identityLocal, ident)
		c.Locals("user_id", ident.ID)
		return c.Next()
	}
}
