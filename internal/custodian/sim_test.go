package custodian

import (
	"context"
	"strings"
	"testing"

	"github.com/custodia-pay/custodia/internal/asset"
)

func TestSimulatorWalletLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()

	w, err := sim.CreateWallet(ctx)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	addr, err := sim.DefaultAddress(ctx, w.ID)
	if err != nil {
		t.Fatalf("default address: %v", err)
	}
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		t.Fatalf("unexpected address format: %s", addr)
	}

	if _, err := sim.Fund(ctx, addr, asset.USDC, 1_000_000); err != nil {
		t.Fatalf("fund: %v", err)
	}

	balance, err := sim.Balance(ctx, w.ID, asset.USDC)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 1_000_000 {
		t.Fatalf("expected balance 1000000, got %d", balance)
	}
}

func TestSimulatorTransferSettles(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()

	src, err := sim.CreateWallet(ctx)
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	dst, err := sim.CreateWallet(ctx)
	if err != nil {
		t.Fatalf("create destination: %v", err)
	}
	srcAddr, _ := sim.DefaultAddress(ctx, src.ID)
	dstAddr, _ := sim.DefaultAddress(ctx, dst.ID)

	SeedBalance(sim, srcAddr, asset.USDC, 5_000_000)

	ref, err := sim.Transfer(ctx, TransferInput{
		WalletID:    src.ID,
		Asset:       asset.USDC,
		Destination: dstAddr,
		Amount:      2_000_000,
		Sponsored:   true,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}

	rcpt, err := sim.Await(ctx, ref)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if rcpt.Status != StatusComplete {
		t.Fatalf("expected complete, got %s", rcpt.Status)
	}
	if rcpt.TransactionLink == "" {
		t.Fatal("expected a transaction link")
	}

	srcBal, _ := sim.Balance(ctx, src.ID, asset.USDC)
	dstBal, _ := sim.Balance(ctx, dst.ID, asset.USDC)
	if srcBal != 3_000_000 || dstBal != 2_000_000 {
		t.Fatalf("unexpected balances after transfer: src=%d dst=%d", srcBal, dstBal)
	}
}

func TestSimulatorTransferRejectsOverdraw(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()

	w, err := sim.CreateWallet(ctx)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}

	if _, err := sim.Transfer(ctx, TransferInput{
		WalletID:    w.ID,
		Asset:       asset.USDC,
		Destination: "0x0000000000000000000000000000000000000001",
		Amount:      1,
	}); err == nil {
		t.Fatal("expected overdraw to fail")
	}
}

func TestSimulatorAddressesAreUnique(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulator()

	seen := make(map[string]struct{})
	for i := 0; i < 16; i++ {
		w, err := sim.CreateWallet(ctx)
		if err != nil {
			t.Fatalf("create wallet: %v", err)
		}
		addr, err := sim.DefaultAddress(ctx, w.ID)
		if err != nil {
			t.Fatalf("default address: %v", err)
		}
		if _, dup := seen[addr]; dup {
			t.Fatalf("duplicate address %s", addr)
		}
		seen[addr] = struct{}{}
	}
}
