package faucet

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-pay/custodia/internal/account"
	"github.com/custodia-pay/custodia/internal/apperr"
	"github.com/custodia-pay/custodia/internal/asset"
	"github.com/custodia-pay/custodia/internal/config"
	"github.com/custodia-pay/custodia/internal/custodian"
	"github.com/custodia-pay/custodia/internal/logging"
)

func testPolicy() config.FaucetPolicy {
	return config.FaucetPolicy{
		InitialGrant:       1_000_000,
		MaxRequestAmount:   10_000_000,
		MaxTotalAmount:     100_000_000,
		MinRequestInterval: time.Minute,
	}
}

// seedAccount stores a provisioned account backed by a simulator wallet.
func seedAccount(t *testing.T, store account.Store, sim *custodian.Simulator, userID string) account.Account {
	t.Helper()
	ctx := context.Background()

	w, err := sim.CreateWallet(ctx)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	addr, err := sim.DefaultAddress(ctx, w.ID)
	if err != nil {
		t.Fatalf("default address: %v", err)
	}

	if _, err := store.GetOrCreate(ctx, account.Account{UserID: userID, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := store.SetWalletIfEmpty(ctx, userID, account.WalletRef{ID: w.ID, Address: addr}); err != nil {
		t.Fatalf("set wallet: %v", err)
	}

	acct, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return acct
}

// setFaucetState force-writes faucet bookkeeping for test setup.
func setFaucetState(t *testing.T, store account.Store, userID string, next account.FaucetState) {
	t.Helper()
	acct, err := store.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	ok, err := store.CompareAndSetFaucet(context.Background(), userID, acct.Faucet, next)
	if err != nil || !ok {
		t.Fatalf("seed faucet state: ok=%v err=%v", ok, err)
	}
}

func TestGrantHappyPath(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seeded := seedAccount(t, store, sim, "user-1")

	acct, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 2_000_000})
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if acct.Faucet.AmountGranted != 2_000_000 {
		t.Fatalf("expected granted total 2000000, got %d", acct.Faucet.AmountGranted)
	}
	if acct.Faucet.LastRequestedAt == nil {
		t.Fatal("expected last requested timestamp")
	}

	balance, err := sim.Balance(ctx, seeded.Wallet.ID, asset.USDC)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 2_000_000 {
		t.Fatalf("granted funds not on wallet, balance %d", balance)
	}
}

func TestGrantAccumulatesAcrossRequests(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")

	amounts := []int64{1_000_000, 3_000_000, 500_000}
	var total int64
	for _, amount := range amounts {
		// Rewind the cooldown between accepted grants.
		acct, err := store.Get(ctx, "user-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if acct.Faucet.LastRequestedAt != nil {
			past := acct.Faucet.LastRequestedAt.Add(-2 * time.Minute)
			setFaucetState(t, store, "user-1", account.FaucetState{
				AmountGranted:   acct.Faucet.AmountGranted,
				LastRequestedAt: &past,
			})
		}

		updated, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: amount})
		if err != nil {
			t.Fatalf("grant %d: %v", amount, err)
		}
		total += amount
		if updated.Faucet.AmountGranted != total {
			t.Fatalf("expected total %d, got %d", total, updated.Faucet.AmountGranted)
		}
	}
}

func TestGrantRejectsInvalidAmountBeforeBackend(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")
	funded := sim.FundCalls()

	for _, amount := range []int64{0, -5, 10_000_001} {
		if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: amount}); !errors.Is(err, apperr.ErrInvalidRequest) {
			t.Fatalf("amount %d: expected invalid request, got %v", amount, err)
		}
	}
	if sim.FundCalls() != funded {
		t.Fatal("invalid requests must not reach the backend")
	}
}

func TestGrantRequiresProvisionedWallet(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())

	if _, err := svc.Grant(ctx, "ghost", FundingRequest{Asset: asset.USDC, Amount: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for missing account, got %v", err)
	}

	if _, err := store.GetOrCreate(ctx, account.Account{UserID: "user-1"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for missing wallet, got %v", err)
	}
}

func TestGrantEnforcesLifetimeCap(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")

	past := time.Now().UTC().Add(-time.Hour)
	setFaucetState(t, store, "user-1", account.FaucetState{AmountGranted: 95_000_000, LastRequestedAt: &past})

	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 6_000_000}); !errors.Is(err, apperr.ErrLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}

	// Exactly reaching the cap is allowed.
	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 5_000_000}); err != nil {
		t.Fatalf("grant to cap: %v", err)
	}
}

func TestGrantEnforcesCooldown(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")

	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000}); err != nil {
		t.Fatalf("first grant: %v", err)
	}

	// One second later the window is still closed.
	_, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000})
	if !errors.Is(err, apperr.ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}

	// Rewind past the interval and it is accepted again.
	acct, _ := store.Get(ctx, "user-1")
	past := acct.Faucet.LastRequestedAt.Add(-61 * time.Second)
	setFaucetState(t, store, "user-1", account.FaucetState{AmountGranted: acct.Faucet.AmountGranted, LastRequestedAt: &past})

	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000}); err != nil {
		t.Fatalf("grant after cooldown: %v", err)
	}
}

func TestGrantRejectsIneligibleAsset(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")
	funded := sim.FundCalls()

	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.ETH, Amount: 1_000_000}); !errors.Is(err, apperr.ErrUnsupportedAsset) {
		t.Fatalf("expected unsupported asset, got %v", err)
	}
	if sim.FundCalls() != funded {
		t.Fatal("ineligible asset must not reach the backend")
	}
}

func TestGrantBackendFailureReleasesReservation(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")

	sim.SetFundError(errors.New("backend down"))
	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000}); !errors.Is(err, apperr.ErrBackendUnavailable) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}

	acct, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.Faucet.AmountGranted != 0 || acct.Faucet.LastRequestedAt != nil {
		t.Fatalf("reservation not rolled back: %+v", acct.Faucet)
	}

	sim.SetFundError(nil)
	if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000}); err != nil {
		t.Fatalf("grant after recovery: %v", err)
	}
}

func TestGrantConcurrentRequestsCannotDoubleSpend(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	sim := custodian.NewSimulator()
	svc := NewService(store, sim, testPolicy(), nil, logging.Discard())
	seedAccount(t, store, sim, "user-1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000}); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("expected exactly one accepted grant inside the cooldown window, got %d", accepted)
	}

	acct, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.Faucet.AmountGranted != 1_000_000 {
		t.Fatalf("lifetime accounting off: %d", acct.Faucet.AmountGranted)
	}
}

// supersededStore loses the rollback compare-and-swap as if another grant
// moved the faucet state in between.
type supersededStore struct {
	account.Store
	casCalls int
}

func (s *supersededStore) CompareAndSetFaucet(ctx context.Context, userID string, prev, next account.FaucetState) (bool, error) {
	s.casCalls++
	if s.casCalls == 2 {
		return false, nil
	}
	return s.Store.CompareAndSetFaucet(ctx, userID, prev, next)
}

func TestGrantLostRollbackIsNotLoggedAsStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &supersededStore{Store: account.NewMemoryStore()}
	sim := custodian.NewSimulator()
	seedAccount(t, store, sim, "user-1")
	sim.SetFundError(errors.New("node down"))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	svc := NewService(store, sim, testPolicy(), nil, logger)

	_, err := svc.Grant(ctx, "user-1", FundingRequest{Asset: asset.USDC, Amount: 1_000_000})
	if !errors.Is(err, apperr.ErrBackendUnavailable) {
		t.Fatalf("expected backend error, got %v", err)
	}

	logs := buf.String()
	if !strings.Contains(logs, "faucet reservation already superseded") {
		t.Fatalf("expected superseded log entry, got %s", logs)
	}
	if strings.Contains(logs, "rollback failed") {
		t.Fatalf("lost reservation misreported as store failure: %s", logs)
	}
}
