package faucet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/identity"
	"github.com/custodia-pay/custodia/internal/middleware"
	"github.com/custodia-pay/custodia/internal/provision"
)

// Handler exposes the faucet HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a faucet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Grant processes a faucet funding request for the authenticated caller and
// returns the updated account.
func (h *Handler) Grant(c *fiber.Ctx) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	}

	var req GrantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	// Unknown codes still go through the service so the documented check
	// order (amount and limits first) is preserved.
	a, _ := asset.Parse(req.Asset)

	acct, err := h.service.Grant(c.UserContext(), ident.ID, FundingRequest{Asset: a, Amount: req.Amount})
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(provision.ToResponse(acct))
}
