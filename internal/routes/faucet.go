package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/faucet"
)

// RegisterFaucetRoutes wires the faucet endpoint.
func RegisterFaucetRoutes(r fiber.Router, h *faucet.Handler) {
	r.Post("/faucet", h.Grant)
}
