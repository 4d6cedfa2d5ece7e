package faucet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/config"
	"github.com/custodia-pay/custodia/internal/custodian"
	"github.com/custodia-pay/custodia/internal/notification"
)

// FundingRequest is a transient faucet request.
type FundingRequest struct {
	Asset  asset.Asset
	Amount int64
}

// Service validates faucet requests against per-request, lifetime and
// cooldown limits, then sends the funds and records the grant.
type Service struct {
	store    account.Store
	backend  custodian.Backend
	policy   config.FaucetPolicy
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService builds the faucet rate limiter.
func NewService(store account.Store, backend custodian.Backend, policy config.FaucetPolicy, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, backend: backend, policy: policy, notifier: notifier, logger: logger}
}

// Grant applies a funding request for the given user. Checks run in a fixed
// order against freshly loaded persisted state; the first failure wins and no
// backend call happens before all checks pass. The new faucet state is
// reserved with a compare-and-swap before funds are sent, so two concurrent
// grants cannot both spend the cooldown window or the lifetime cap.
func (s *Service) Grant(ctx context.Context, userID string, req FundingRequest) (account.Account, error) {
	if req.Amount <= 0 || req.Amount > s.policy.MaxRequestAmount {
		return account.Account{}, fmt.Errorf("%w: amount must be in (0, %d]", apperr.ErrInvalidRequest, s.policy.MaxRequestAmount)
	}

	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return account.Account{}, err
	}
	if !acct.Wallet.Provisioned() {
		return account.Account{}, fmt.Errorf("wallet: %w", apperr.ErrNotFound)
	}

	if acct.Faucet.AmountGranted+req.Amount > s.policy.MaxTotalAmount {
		return account.Account{}, fmt.Errorf("%w: lifetime cap is %d", apperr.ErrLimitExceeded, s.policy.MaxTotalAmount)
	}

	now := time.Now().UTC()
	if last := acct.Faucet.LastRequestedAt; last != nil && now.Sub(*last) < s.policy.MinRequestInterval {
		return account.Account{}, fmt.Errorf("%w: wait %s between requests", apperr.ErrRateLimited, s.policy.MinRequestInterval)
	}

	if !asset.FaucetEligible(req.Asset) {
		return account.Account{}, fmt.Errorf("%w: %s", apperr.ErrUnsupportedAsset, req.Asset)
	}

	next := account.FaucetState{
		AmountGranted:   acct.Faucet.AmountGranted + req.Amount,
		LastRequestedAt: &now,
	}
	reserved, err := s.store.CompareAndSetFaucet(ctx, userID, acct.Faucet, next)
	if err != nil {
		return account.Account{}, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	if !reserved {
		// Another grant moved the faucet state since we read it.
		return account.Account{}, fmt.Errorf("%w: concurrent grant in flight", apperr.ErrRateLimited)
	}

	if _, err := s.backend.Fund(ctx, acct.Wallet.Address, req.Asset, req.Amount); err != nil {
		// Release the reservation; nothing was sent.
		if ok, rbErr := s.store.CompareAndSetFaucet(ctx, userID, next, acct.Faucet); rbErr != nil {
			s.logger.Warn("faucet reservation rollback failed", "user_id", userID, "error", rbErr)
		} else if !ok {
			s.logger.Warn("faucet reservation already superseded", "user_id", userID)
		}
		return account.Account{}, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}

	acct.Faucet = next

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindFaucetGrant,
			Destination: acct.UserID,
			Body:        fmt.Sprintf("Granted %d %s to %s", req.Amount, req.Asset, acct.Wallet.Address),
		})
	}

	return acct, nil
}
