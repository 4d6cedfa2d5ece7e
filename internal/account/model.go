package account

import "time"

// Account is the service-side record for one external identity. It embeds the
// wallet reference and faucet bookkeeping as value sub-records; the custodial
// backend owns the wallet itself.
type Account struct {
	UserID    string
	Name      string
	Email     string
	AvatarURL string
	Wallet    WalletRef
	Faucet    FaucetState
	CreatedAt time.Time
}

// WalletRef points at the wallet held by the custodial backend. ID and
// Address are written at most once; a ref is considered provisioned only when
// both are present. FundedAt records when the one-time initial grant was
// confirmed, nil while unconfirmed.
type WalletRef struct {
	ID       string
	Address  string
	FundedAt *time.Time
}

// Provisioned reports whether the wallet reference is fully populated.
func (w WalletRef) Provisioned() bool {
	return w.ID != "" && w.Address != ""
}

// FaucetState tracks cumulative faucet usage. AmountGranted only grows and
// must stay within the configured lifetime cap; LastRequestedAt is the time
// of the most recently accepted grant, nil before the first one.
type FaucetState struct {
	AmountGranted   int64
	LastRequestedAt *time.Time
}
