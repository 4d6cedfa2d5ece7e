package faucet

// GrantRequest captures user-provided data for a faucet funding request.
// Amount is in the asset's base units.
type GrantRequest struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}
