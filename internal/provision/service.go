package provision

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
	"github.com/custodia-pay/custodia/internal/identity"
)

// Outcome reports how far provisioning got on this call. Partial outcomes are
// informational, not failures: the account is returned and the missing step
// is retried on a later call.
type Outcome string

const (
	// OutcomeComplete means wallet and initial grant are in place.
	OutcomeComplete Outcome = "complete"
	// OutcomePartialFunding means the wallet exists but the one-time initial
	// grant has not been confirmed.
	OutcomePartialFunding Outcome = "partial_funding"
	// OutcomeDeferred means no wallet was assigned on this call, either
	// because creation failed or another request holds the provisioning lock.
	OutcomeDeferred Outcome = "deferred"
)

// Service orchestrates the account lifecycle: get-or-create the account
// record, assign a custodial wallet at most once, and fund it once.
type Service struct {
	store   account.Store
	backend custodian.Backend
	locks   Locker
	policy  config.FaucetPolicy
	logger  *slog.Logger
}

// NewService builds the provisioning orchestrator.
func NewService(store account.Store, backend custodian.Backend, locks Locker, policy config.FaucetPolicy, logger *slog.Logger) *Service {
	if locks == nil {
		locks = NewLocalLocker()
	}
	return &Service{store: store, backend: backend, locks: locks, policy: policy, logger: logger}
}

// EnsureProvisioned returns the caller's account, creating record, wallet and
// initial grant as needed. Wallet-creation and funding failures are absorbed
// into the outcome; only store failures surface as errors.
func (s *Service) EnsureProvisioned(ctx context.Context, ident identity.Identity) (account.Account, Outcome, error) {
	acct, err := s.store.GetOrCreate(ctx, account.Account{
		UserID:    ident.ID,
		Name:      ident.Name,
		Email:     ident.Email,
		AvatarURL: ident.AvatarURL,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return account.Account{}, OutcomeDeferred, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}

	if acct.Wallet.Provisioned() {
		if acct.Wallet.FundedAt == nil && s.policy.RetryInitialGrant {
			return s.retryGrant(ctx, acct)
		}
		if acct.Wallet.FundedAt == nil {
			return acct, OutcomePartialFunding, nil
		}
		return acct, OutcomeComplete, nil
	}

	release, ok := s.locks.TryLock(ctx, ident.ID)
	if !ok {
		// Another request is provisioning this identity right now.
		return acct, OutcomeDeferred, nil
	}
	defer release()

	// Re-read under the lock: the previous holder may have finished.
	acct, err = s.store.Get(ctx, ident.ID)
	if err != nil {
		return account.Account{}, OutcomeDeferred, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	if acct.Wallet.Provisioned() {
		if acct.Wallet.FundedAt == nil {
			return acct, OutcomePartialFunding, nil
		}
		return acct, OutcomeComplete, nil
	}

	wallet, err := s.backend.CreateWallet(ctx)
	if err != nil {
		s.logger.Warn("wallet creation failed", "user_id", ident.ID, "error", err)
		return acct, OutcomeDeferred, nil
	}
	address, err := s.backend.DefaultAddress(ctx, wallet.ID)
	if err != nil {
		s.logger.Warn("address lookup failed", "user_id", ident.ID, "wallet_id", wallet.ID, "error", err)
		return acct, OutcomeDeferred, nil
	}

	ref := account.WalletRef{ID: wallet.ID, Address: address}
	set, err := s.store.SetWalletIfEmpty(ctx, ident.ID, ref)
	if err != nil {
		return account.Account{}, OutcomeDeferred, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	if !set {
		// Lost the conditional write; the stored wallet wins and ours is
		// orphaned at the backend.
		s.logger.Warn("wallet assignment raced", "user_id", ident.ID, "orphaned_wallet_id", wallet.ID)
		acct, err = s.store.Get(ctx, ident.ID)
		if err != nil {
			return account.Account{}, OutcomeDeferred, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
		}
		if acct.Wallet.FundedAt == nil {
			return acct, OutcomePartialFunding, nil
		}
		return acct, OutcomeComplete, nil
	}
	acct.Wallet = ref

	return acct, s.grantInitial(ctx, acct), nil
}

// retryGrant re-attempts the initial grant under the per-identity lock so
// concurrent fetches cannot double-issue it. Without the lock the current
// state is returned unchanged.
func (s *Service) retryGrant(ctx context.Context, acct account.Account) (account.Account, Outcome, error) {
	release, ok := s.locks.TryLock(ctx, acct.UserID)
	if !ok {
		return acct, OutcomePartialFunding, nil
	}
	defer release()

	// Re-read under the lock: another request may have funded already.
	acct, err := s.store.Get(ctx, acct.UserID)
	if err != nil {
		return account.Account{}, OutcomeDeferred, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	if acct.Wallet.FundedAt != nil {
		return acct, OutcomeComplete, nil
	}
	return acct, s.grantInitial(ctx, acct), nil
}

// Balance reports the live backend balance of the caller's wallet.
func (s *Service) Balance(ctx context.Context, userID string, a asset.Asset) (int64, error) {
	if !asset.Known(a) {
		return 0, fmt.Errorf("%w: %s", apperr.ErrUnsupportedAsset, a)
	}
	acct, err := s.store.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !acct.Wallet.Provisioned() {
		return 0, fmt.Errorf("wallet: %w", apperr.ErrNotFound)
	}
	balance, err := s.backend.Balance(ctx, acct.Wallet.ID, a)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
	}
	return balance, nil
}

// grantInitial performs the one-time funding grant. Failure leaves the wallet
// provisioned and unfunded; whether it is retried later is policy.
func (s *Service) grantInitial(ctx context.Context, acct account.Account) Outcome {
	if s.policy.InitialGrant <= 0 {
		return OutcomeComplete
	}
	if _, err := s.backend.Fund(ctx, acct.Wallet.Address, asset.USDC, s.policy.InitialGrant); err != nil {
		s.logger.Warn("initial grant failed", "user_id", acct.UserID, "wallet_id", acct.Wallet.ID, "error", err)
		return OutcomePartialFunding
	}
	if err := s.store.MarkWalletFunded(ctx, acct.UserID, time.Now().UTC()); err != nil {
		// Funds were sent; only the bookkeeping is behind.
		s.logger.Warn("funded flag not persisted", "user_id", acct.UserID, "error", err)
	}
	return OutcomeComplete
}
