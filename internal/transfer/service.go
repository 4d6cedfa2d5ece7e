package transfer

import (
	"context"
	"fmt"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/custodian"
	"github.com/custodia-pay/custodia/internal/notification"
)

// TransferRequest describes a single outbound transfer.
type TransferRequest struct {
	Asset     asset.Asset
	Recipient string
	Amount    int64
}

// Result reports the terminal outcome of a transfer as seen by the backend.
type Result struct {
	TransactionLink string
	Status          string
}

// Service validates and executes outbound asset transfers. Balances are
// always sourced live from the backend; no local bookkeeping is kept.
type Service struct {
	store    account.Store
	backend  custodian.Backend
	notifier notification.Notifier
}

// NewService builds the transfer executor.
func NewService(store account.Store, backend custodian.Backend, notifier notification.Notifier) *Service {
	return &Service{store: store, backend: backend, notifier: notifier}
}

// Transfer validates the request, checks the live balance and executes the
// transfer, awaiting settlement synchronously. Transfers of the stable asset
// run sponsored.
func (s *Service) Transfer(ctx context.Context, userID string, req TransferRequest) (Result, error) {
	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if !acct.Wallet.Provisioned() {
		return Result{}, fmt.Errorf("wallet: %w", apperr.ErrNotFound)
	}

	if req.Asset == "" || req.Recipient == "" || req.Amount <= 0 {
		return Result{}, fmt.Errorf("%w: asset, recipient and a positive amount are required", apperr.ErrInvalidRequest)
	}
	if !asset.TransferEligible(req.Asset) {
		return Result{}, fmt.Errorf("%w: %s", apperr.ErrUnsupportedAsset, req.Asset)
	}

	balance, err := s.backend.Balance(ctx, acct.Wallet.ID, req.Asset)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	if balance < req.Amount {
		return Result{}, fmt.Errorf("%w: have %d, need %d", apperr.ErrInsufficientBalance, balance, req.Amount)
	}

	ref, err := s.backend.Transfer(ctx, custodian.TransferInput{
		WalletID:    acct.Wallet.ID,
		Asset:       req.Asset,
		Destination: req.Recipient,
		Amount:      req.Amount,
		Sponsored:   asset.Sponsored(req.Asset),
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}

	receipt, err := s.backend.Await(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindAssetTransfer,
			Destination: req.Recipient,
			Body:        fmt.Sprintf("Sent %d %s from %s", req.Amount, req.Asset, acct.Wallet.Address),
		})
	}

	return Result{TransactionLink: receipt.TransactionLink, Status: receipt.Status}, nil
}
