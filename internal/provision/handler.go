package provision

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/identity"
	"github.com/custodia-pay/custodia/internal/middleware"
)

// Handler exposes account provisioning HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a provisioning handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type walletResponse struct {
	ID       string     `json:"id,omitempty"`
	Address  string     `json:"address,omitempty"`
	FundedAt *time.Time `json:"funded_at,omitempty"`
}

type faucetResponse struct {
	AmountGranted   int64      `json:"amount_granted"`
	LastRequestedAt *time.Time `json:"last_requested_at,omitempty"`
}

// AccountResponse is the wire shape of an account, shared with the faucet
// handler which also returns the updated account.
type AccountResponse struct {
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	Wallet       walletResponse `json:"wallet"`
	Faucet       faucetResponse `json:"faucet"`
	Provisioning string         `json:"provisioning,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ToResponse shapes an account for the API.
func ToResponse(acct account.Account) AccountResponse {
	return AccountResponse{
		UserID:    acct.UserID,
		Name:      acct.Name,
		Email:     acct.Email,
		AvatarURL: acct.AvatarURL,
		Wallet: walletResponse{
			ID:       acct.Wallet.ID,
			Address:  acct.Wallet.Address,
			FundedAt: acct.Wallet.FundedAt,
		},
		Faucet: faucetResponse{
			AmountGranted:   acct.Faucet.AmountGranted,
			LastRequestedAt: acct.Faucet.LastRequestedAt,
		},
		CreatedAt: acct.CreatedAt,
	}
}

// Get returns the caller's account, provisioning wallet and initial grant on
// first sight. Partial provisioning is reported in the payload, never as an
// error.
func (h *Handler) Get(c *fiber.Ctx) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	}

	acct, outcome, err := h.service.EnsureProvisioned(c.UserContext(), ident)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}

	resp := ToResponse(acct)
	resp.Provisioning = string(outcome)
	return c.Status(http.StatusOK).JSON(resp)
}

// Balance returns the live wallet balance for one asset.
func (h *Handler) Balance(c *fiber.Ctx) error {
	ident, ok := middleware.IdentityFrom(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, identity.ErrUnauthenticated.Error())
	}

	a, known := asset.Parse(c.Query("asset", string(asset.USDC)))
	if !known {
		return fiber.NewError(http.StatusBadRequest, apperr.ErrUnsupportedAsset.Error())
	}

	balance, err := h.service.Balance(c.UserContext(), ident.ID, a)
	if err != nil {
		return fiber.NewError(apperr.HTTPStatus(err), err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":     a,
		"balance":   balance,
		"timestamp": time.Now().UTC(),
	})
}
