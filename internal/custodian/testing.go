package custodian

import "github.com/custodia-pay/custodia/internal/asset"

// SeedBalance is a test helper that credits an address directly, bypassing
// the fund call counter.
func SeedBalance(b Backend, address string, a asset.Asset, amount int64) {
	if sim, ok := b.(*Simulator); ok {
		sim.mu.Lock()
		defer sim.mu.Unlock()
		if _, exists := sim.balances[address]; !exists {
			sim.balances[address] = make(map[asset.Asset]int64)
		}
		sim.balances[address][a] = amount
	}
}

// SetCreateError makes CreateWallet return err until cleared with nil.
func (s *Simulator) SetCreateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = err
}

// SetFundError makes Fund return err until cleared with nil.
func (s *Simulator) SetFundError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFund = err
}

// SetTransferError makes Transfer return err until cleared with nil.
func (s *Simulator) SetTransferError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTransfer = err
}

// CreateCalls reports how many wallet creations reached the backend.
func (s *Simulator) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// FundCalls reports how many funding requests reached the backend.
func (s *Simulator) FundCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fundCalls
}

// BalanceCalls reports how many balance queries reached the backend.
func (s *Simulator) BalanceCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceCalls
}

// TransferCalls reports how many transfer executions reached the backend.
func (s *Simulator) TransferCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transferCalls
}
