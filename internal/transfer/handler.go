package transfer

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/identity"
	"github.com/custodia-pay/custodia/internal/middleware"
)

// Handler exposes the outbound transfer HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	Asset     string `json:"asset"`
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

type transferResponse struct {
	TransactionLink string `json:"transaction_link"`
	Status          string `json:"status"`
}

// Create executes an outbound transfer for the authenticated caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	}

	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	a, _ := asset.Parse(req.Asset)
	result, err := h.service.Transfer(c.UserContext(), ident.ID, TransferRequest{
		Asset:     a,
		Recipient: req.Recipient,
		Amount:    req.Amount,
	})
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}

	return c.Status(http.StatusOK).JSON(transferResponse{
		TransactionLink: result.TransactionLink,
		Status:          result.Status,
	})
}
