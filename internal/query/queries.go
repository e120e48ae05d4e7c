package query

import (
	"context"
	"time"

	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/pricefeed"
)

// CampaignInfoQuery polls the campaign snapshot. It stays disabled until
// prices reports both asset prices.
func CampaignInfoQuery(r *Reader, prices func() domain.PriceData) Query {
	return Query{
		Key: KeyCampaignInfo,
		Enabled: func() bool {
			return prices != nil && prices().Complete()
		},
		Fetch: func(ctx context.Context) (any, error) {
			return r.CampaignInfo(ctx)
		},
	}
}

// PurchaseStatusQuery polls the purchase record of address. It is disabled
// for an empty address.
func PurchaseStatusQuery(r *Reader, address string) Query {
	return Query{
		Key: PurchaseKey(address),
		Enabled: func() bool {
			return address != ""
		},
		Fetch: func(ctx context.Context) (any, error) {
			return r.PurchaseStatus(ctx, address)
		},
	}
}

// PricesQuery polls feed every interval.
func PricesQuery(feed pricefeed.Feed, interval time.Duration) Query {
	return Query{
		Key:      KeyPrices,
		Interval: interval,
		Fetch: func(ctx context.Context) (any, error) {
			return feed.Prices(ctx)
		},
	}
}
