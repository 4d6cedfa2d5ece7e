package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/identity"
)

func setupAuthApp(t *testing.T) *fiber.App {
	t.Helper()
	provider := identity.NewStaticProvider()
	provider.Add("good-token", identity.Identity{ID: "user-1", Name: "Ada"})

	app := fiber.New()
	app.Get("/me", Auth(provider), func(c *fiber.Ctx) error {
		ident, ok := IdentityFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusInternalServerError, "identity missing")
		}
		return c.JSON(fiber.Map{"user_id": ident.ID})
	})
	return app
}

func TestAuthResolvesBearerToken(t *testing.T) {
	app := setupAuthApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	app := setupAuthApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthRejectsUnknownToken(t *testing.T) {
	app := setupAuthApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer bad-token")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
