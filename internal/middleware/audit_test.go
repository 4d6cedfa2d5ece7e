package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/identity"
)

func TestAuditLogsResolvedUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(WithIdentity(identity.Identity{ID: "user-1", Name: "Ada"}))
	app.Use(Audit(logger))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"user_id":"user-1"`) {
		t.Fatalf("expected resolved user in audit log, got %s", logs)
	}
	if !strings.Contains(logs, `"request_id"`) {
		t.Fatalf("expected request id in audit log, got %s", logs)
	}
}
