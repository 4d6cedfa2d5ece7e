package asset

import "strings"

// Asset identifies a supported asset code. The set of known assets is closed;
// eligibility for the faucet and for outbound transfers is tracked separately
// because the two surfaces do not have to agree.
type Asset string

const (
	// USDC is the stable asset; the only one eligible for faucet grants and
	// outbound transfers, and the only one executed gasless.
	USDC Asset = "usdc"
	// ETH is recognised on the wire but not eligible for any operation.
	ETH Asset = "eth"
)

var known = map[Asset]struct{}{
	USDC: {},
	ETH:  {},
}

var faucetEligible = map[Asset]struct{}{
	USDC: {},
}

var transferEligible = map[Asset]struct{}{
	USDC: {},
}

// Parse normalises a wire-level asset code. The second return is false when
// the code is not in the known set.
func Parse(code string) (Asset, bool) {
	a := Asset(strings.ToLower(strings.TrimSpace(code)))
	_, ok := known[a]
	return a, ok
}

// Known reports whether the asset is in the closed enumeration.
func Known(a Asset) bool {
	_, ok := known[a]
	return ok
}

// FaucetEligible reports whether the faucet may grant this asset.
func FaucetEligible(a Asset) bool {
	_, ok := faucetEligible[a]
	return ok
}

// TransferEligible reports whether outbound transfers of this asset are allowed.
func TransferEligible(a Asset) bool {
	_, ok := transferEligible[a]
	return ok
}

// Sponsored reports whether transfers of this asset have their network fees
// paid by the service.
func Sponsored(a Asset) bool {
	return a == USDC
}
