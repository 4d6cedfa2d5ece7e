package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/transfer"
)

// RegisterTransferRoutes wires the outbound transfer endpoint.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/transfers", h.Create)
}
