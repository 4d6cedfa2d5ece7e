package custodian

import (
	"context"
	"errors"

	"github.com/custodia-pay/custodia/internal/asset"
)

// ErrWalletNotFound indicates the backend has no wallet for the given id.
var ErrWalletNotFound = errors.New("wallet not found")

// Transfer terminal states as reported by the backend.
const (
	StatusComplete = "complete"
	StatusPending  = "pending"
	StatusFailed   = "failed"
)

// Wallet is the backend-side wallet handle. Keys never leave the backend;
// callers only see the id and derived addresses.
type Wallet struct {
	ID string
}

// TransferRef identifies an in-flight or settled transfer at the backend.
type TransferRef struct {
	ID string
}

// TransferInput describes an outbound transfer from a custodial wallet.
// Sponsored transfers have their network fees paid by the service.
type TransferInput struct {
	WalletID    string
	Asset       asset.Asset
	Destination string
	Amount      int64
	Sponsored   bool
}

// Receipt is the settlement outcome of a transfer.
type Receipt struct {
	Status          string
	TransactionLink string
}

// Backend is the custodial wallet service consumed by this core: address
// generation, balance queries and transfer execution all happen there. Every
// call is a blocking I/O boundary and honors the context deadline.
type Backend interface {
	CreateWallet(ctx context.Context) (Wallet, error)
	Wallet(ctx context.Context, id string) (Wallet, error)
	DefaultAddress(ctx context.Context, walletID string) (string, error)
	Balance(ctx context.Context, walletID string, a asset.Asset) (int64, error)
	Fund(ctx context.Context, address string, a asset.Asset, amount int64) (TransferRef, error)
	Transfer(ctx context.Context, in TransferInput) (TransferRef, error)
	Await(ctx context.Context, ref TransferRef) (Receipt, error)
}
