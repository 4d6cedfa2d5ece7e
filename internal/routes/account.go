package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/provision"
)

// RegisterAccountRoutes wires account provisioning endpoints.
func RegisterAccountRoutes(r fiber.Router, h *provision.Handler) {
	r.Get("/account", h.Get)
	r.Get("/account/balance", h.Balance)
}
