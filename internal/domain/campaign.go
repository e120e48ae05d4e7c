package domain

// CampaignInfo is a read-only snapshot of the fundraising contract state.
// All amounts are in the smallest unit of their asset.
type CampaignInfo struct {
	Start         uint64 `json:"start"` // block height; 0 until initialized
	TotalSTX      uint64 `json:"totalStx"`
	TotalSBTC     uint64 `json:"totalSbtc"`
	PurchaseCount uint64 `json:"purchaseCount"`
	IsCancelled   bool   `json:"isCancelled"`
	PriceUSTX     uint64 `json:"ustxPrice"`
	PriceSats     uint64 `json:"satsPrice"`

	// USDValue is derived from PriceData, never read from chain.
	// Nil when prices are unknown.
	USDValue *float64 `json:"usdValue,omitempty"`
}

// Lifecycle is the campaign state derived from CampaignInfo.
type Lifecycle string

const (
	Uninitialized Lifecycle = "uninitialized"
	Active        Lifecycle = "active"
	Cancelled     Lifecycle = "cancelled"
)

// Lifecycle classifies the snapshot. A campaign with Start == 0 is
// Uninitialized even if the cancelled flag is set.
func (c CampaignInfo) Lifecycle() Lifecycle {
	switch {
	case c.Start == 0:
		return Uninitialized
	case c.IsCancelled:
		return Cancelled
	default:
		return Active
	}
}

// IsUninitialized reports whether the campaign has not been opened yet.
func (c CampaignInfo) IsUninitialized() bool {
	return c.Lifecycle() == Uninitialized
}

// IsCancelledCampaign reports whether the campaign was opened and later cancelled.
func (c CampaignInfo) IsCancelledCampaign() bool {
	return c.Lifecycle() == Cancelled
}

// Price returns the unit price for asset.
func (c CampaignInfo) Price(asset Asset) uint64 {
	if asset == SBTC {
		return c.PriceSats
	}
	return c.PriceUSTX
}

// WithUSD returns a copy of c with USDValue computed from prices.
// USDValue is nil unless both prices are present and positive.
func (c CampaignInfo) WithUSD(prices PriceData) CampaignInfo {
	c.USDValue = nil
	if !prices.Complete() {
		return c
	}
	v := USTXToSTX(c.TotalSTX)*prices[STX] + SatsToSBTC(c.TotalSBTC)*prices[SBTC]
	c.USDValue = &v
	return c
}
