package domain

import "strings"

// Asset is a settlement asset accepted for purchase.
type Asset string

const (
	STX  Asset = "stx"
	SBTC Asset = "sbtc"
)

// Smallest-unit scale factors.
const (
	MicroSTXPerSTX = 1_000_000
	SatsPerSBTC    = 100_000_000
)

// ParseAsset maps a user-supplied payment method to an Asset.
func ParseAsset(s string) (Asset, bool) {
	switch Asset(strings.ToLower(strings.TrimSpace(s))) {
	case STX:
		return STX, true
	case SBTC, "btc":
		return SBTC, true
	}
	return "", false
}

// PriceData maps an asset to its current USD unit price.
type PriceData map[Asset]float64

// Complete reports whether both asset prices are present and positive.
func (p PriceData) Complete() bool {
	return p[STX] > 0 && p[SBTC] > 0
}

// USTXToSTX converts micro-STX to STX.
func USTXToSTX(ustx uint64) float64 {
	return float64(ustx) / MicroSTXPerSTX
}

// SatsToSBTC converts sats to sBTC.
func SatsToSBTC(sats uint64) float64 {
	return float64(sats) / SatsPerSBTC
}
