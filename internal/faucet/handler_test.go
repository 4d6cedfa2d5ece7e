package faucet

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/custodian"
	"github.com/custodia-pay/custodia/internal/identity"
	"github.com/custodia-pay/custodia/internal/logging"
	"github.com/custodia-pay/custodia/internal/middleware"
)

func setupFaucetApp(t *testing.T) (*fiber.App, account.Store, *custodian.Simulator) {
	t.Helper()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	handler := NewHandler(svc)

	app := fiber.New()
	app.Use(middleware.WithIdentity(identity.Identity{ID: "user-1", Name: "Ada"}))
	app.Post("/faucet", handler.Grant)
	return app, store, sim
}

func postFaucet(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/faucet", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp
}

func TestFaucetHandlerGrant(t *testing.T) {
	app, store, sim := setupFaucetApp(t)
	seedAccount(t, store, sim, "user-1")

	resp := postFaucet(t, app, `{"asset":"usdc","amount":2000000}`)
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		UserID string `json:"user_id"`
		Faucet struct {
			AmountGranted   int64      `json:"amount_granted"`
			LastRequestedAt *time.Time `json:"last_requested_at"`
		} `json:"faucet"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UserID != "user-1" || payload.Faucet.AmountGranted != 2_000_000 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.Faucet.LastRequestedAt == nil {
		t.Fatal("expected last requested timestamp in response")
	}
}

func TestFaucetHandlerCooldownMapsTo429(t *testing.T) {
	app, store, sim := setupFaucetApp(t)
	seedAccount(t, store, sim, "user-1")

	if resp := postFaucet(t, app, `{"asset":"usdc","amount":1000000}`); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}
	if resp := postFaucet(t, app, `{"asset":"usdc","amount":1000000}`); resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.StatusCode)
	}
}

func TestFaucetHandlerValidationMapsTo400(t *testing.T) {
	app, store, sim := setupFaucetApp(t)
	seedAccount(t, store, sim, "user-1")

	if resp := postFaucet(t, app, `{"asset":"usdc","amount":0}`); resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("zero amount: expected 400, got %d", resp.StatusCode)
	}
	if resp := postFaucet(t, app, `{"asset":"eth","amount":1000000}`); resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("ineligible asset: expected 400, got %d", resp.StatusCode)
	}
}

func TestFaucetHandlerUnknownAccountMapsTo404(t *testing.T) {
	app, _, _ := setupFaucetApp(t)

	if resp := postFaucet(t, app, `{"asset":"usdc","amount":1000000}`); resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
