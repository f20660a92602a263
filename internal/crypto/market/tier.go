package market

import "fmt"

// Tier is the market-cap bucket of an asset.
type Tier string

const (
	TierSmall  Tier = "Small"
	TierMedium Tier = "Medium"
	TierLarge  Tier = "Large"
	TierMega   Tier = "Mega"
)

// Lower bounds (inclusive) of each tier above Small, in the reporting currency.
const (
	mediumFloor = 1e9
	largeFloor  = 10e9
	megaFloor   = 100e9
)

// Classify returns the tier for a market capitalization.
// Intervals are half-open, so a value on a boundary belongs to the higher tier.
// Negative input falls into Small.
func Classify(marketCap float64) Tier {
	switch {
	case marketCap >= megaFloor:
		return TierMega
	case marketCap >= largeFloor:
		return TierLarge
	case marketCap >= mediumFloor:
		return TierMedium
	default:
		return TierSmall
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierSmall, TierMedium, TierLarge, TierMega:
		return true
	}
	return false
}

// ParseTier parses a stored tier name.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid tier: %q", s)
	}
	return t, nil
}
