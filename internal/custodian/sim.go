package custodian

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/custodia-pay/custodia/internal/asset"
)

type simWallet struct {
	id      string
	address string
}

// Simulator is an in-process Backend with real key generation and
// keccak-derived receiving addresses. Transfers settle synchronously.
// Used in tests and local development.
type Simulator struct {
	mu        sync.Mutex
	wallets   map[string]simWallet
	byAddress map[string]string
	balances  map[string]map[asset.Asset]int64
	receipts  map[string]Receipt
	linkBase  string

	createCalls   int
	fundCalls     int
	balanceCalls  int
	transferCalls int

	failCreate   error
	failFund     error
	failTransfer error
}

// NewSimulator builds an empty simulated backend.
func NewSimulator() *Simulator {
	return &Simulator{
		wallets:   make(map[string]simWallet),
		byAddress: make(map[string]string),
		balances:  make(map[string]map[asset.Asset]int64),
		receipts:  make(map[string]Receipt),
		linkBase:  "https://explorer.custodia.test/tx",
	}
}

// CreateWallet generates a keypair and registers a wallet around it.
func (s *Simulator) CreateWallet(_ context.Context) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.failCreate != nil {
		return Wallet{}, s.failCreate
	}

	addr, err := newAddress()
	if err != nil {
		return Wallet{}, fmt.Errorf("derive address: %w", err)
	}

	w := simWallet{id: uuid.NewString(), address: addr}
	s.wallets[w.id] = w
	s.byAddress[w.address] = w.id
	s.balances[w.address] = make(map[asset.Asset]int64)
	return Wallet{ID: w.id}, nil
}

// Wallet fetches a wallet handle by id.
func (s *Simulator) Wallet(_ context.Context, id string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[id]; !ok {
		return Wallet{}, fmt.Errorf("wallet %s: %w", id, ErrWalletNotFound)
	}
	return Wallet{ID: id}, nil
}

// DefaultAddress returns the wallet's primary receiving address.
func (s *Simulator) DefaultAddress(_ context.Context, walletID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return "", fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	return w.address, nil
}

// Balance reports the wallet's holdings of one asset.
func (s *Simulator) Balance(_ context.Context, walletID string, a asset.Asset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balanceCalls++
	w, ok := s.wallets[walletID]
	if !ok {
		return 0, fmt.Errorf("wallet %s: %w", walletID, ErrWalletNotFound)
	}
	return s.balances[w.address][a], nil
}

// Fund credits an address from the simulator's unbounded faucet reserve.
func (s *Simulator) Fund(_ context.Context, address string, a asset.Asset, amount int64) (TransferRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fundCalls++
	if s.failFund != nil {
		return TransferRef{}, s.failFund
	}
	if amount <= 0 {
		return TransferRef{}, fmt.Errorf("non-positive amount %d", amount)
	}
	if _, ok := s.balances[address]; !ok {
		s.balances[address] = make(map[asset.Asset]int64)
	}
	s.balances[address][a] += amount
	return s.settle(), nil
}

// Transfer debits the source wallet and credits the destination when it is a
// simulator-managed address; external destinations just see funds leave.
func (s *Simulator) Transfer(_ context.Context, in TransferInput) (TransferRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferCalls++
	if s.failTransfer != nil {
		return TransferRef{}, s.failTransfer
	}
	w, ok := s.wallets[in.WalletID]
	if !ok {
		return TransferRef{}, fmt.Errorf("wallet %s: %w", in.WalletID, ErrWalletNotFound)
	}
	if s.balances[w.address][in.Asset] < in.Amount {
		return TransferRef{}, fmt.Errorf("balance below %d", in.Amount)
	}
	s.balances[w.address][in.Asset] -= in.Amount
	if _, ok := s.balances[in.Destination]; ok {
		s.balances[in.Destination][in.Asset] += in.Amount
	}
	return s.settle(), nil
}

// Await returns the settlement receipt for a transfer reference.
func (s *Simulator) Await(_ context.Context, ref TransferRef) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rcpt, ok := s.receipts[ref.ID]
	if !ok {
		return Receipt{}, fmt.Errorf("unknown transfer %s", ref.ID)
	}
	return rcpt, nil
}

func (s *Simulator) settle() TransferRef {
	ref := TransferRef{ID: uuid.NewString()}
	s.receipts[ref.ID] = Receipt{
		Status:          StatusComplete,
		TransactionLink: fmt.Sprintf("%s/%s", s.linkBase, ref.ID),
	}
	return ref
}

// newAddress derives a 0x address from a fresh ECDSA public key, keccak-256
// over the uncompressed point with the leading byte dropped.
func newAddress() (string, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", err
	}
	pub := elliptic.Marshal(key.PublicKey.Curve, key.PublicKey.X, key.PublicKey.Y)
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:]), nil
}
