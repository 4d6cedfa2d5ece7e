package account

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-pay/custodia/internal/apperr"
)

type memoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
}

// NewMemoryStore builds an in-memory store mirroring the conditional-write
// semantics of the Postgres implementation. Used in tests and dev mode.
func NewMemoryStore() Store {
	return &memoryStore{accounts: make(map[string]Account)}
}

func (s *memoryStore) GetOrCreate(_ context.Context, acct Account) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[acct.UserID]; ok {
		return existing, nil
	}
	s.accounts[acct.UserID] = acct
	return acct, nil
}

func (s *memoryStore) Get(_ context.Context, userID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return Account{}, fmt.Errorf("account %s: %w", userID, apperr.ErrNotFound)
	}
	return acct, nil
}

func (s *memoryStore) SetWalletIfEmpty(_ context.Context, userID string, ref WalletRef) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return false, fmt.Errorf("account %s: %w", userID, apperr.ErrNotFound)
	}
	if acct.Wallet.ID != "" {
		return false, nil
	}
	acct.Wallet.ID = ref.ID
	acct.Wallet.Address = ref.Address
	s.accounts[userID] = acct
	return true, nil
}

func (s *memoryStore) MarkWalletFunded(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return fmt.Errorf("account %s: %w", userID, apperr.ErrNotFound)
	}
	if acct.Wallet.FundedAt == nil {
		t := at.UTC()
		acct.Wallet.FundedAt = &t
		s.accounts[userID] = acct
	}
	return nil
}

func (s *memoryStore) CompareAndSetFaucet(_ context.Context, userID string, prior, next FaucetState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[userID]
	if !ok {
		return false, fmt.Errorf("account %s: %w", userID, apperr.ErrNotFound)
	}
	if acct.Faucet.AmountGranted != prior.AmountGranted || !equalTime(acct.Faucet.LastRequestedAt, prior.LastRequestedAt) {
		return false, nil
	}
	acct.Faucet = next
	s.accounts[userID] = acct
	return true, nil
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
