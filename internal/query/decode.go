package query

import (
	"fmt"

	"stacks-fundraising/internal/clarity"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/stacks"
)

// unwrap maps a read-only envelope to the ok value of a Clarity response.
func unwrap(res *stacks.ReadOnlyResult) (clarity.Value, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: empty envelope", domain.ErrDecoding)
	}
	if !res.Okay {
		return nil, &domain.ContractError{Cause: res.Cause}
	}

	v, err := clarity.DecodeHex(res.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecoding, err)
	}

	switch r := v.(type) {
	case clarity.ResponseOk:
		return r.Value, nil
	case clarity.ResponseErr:
		return nil, &domain.ContractError{Cause: r.String()}
	default:
		return nil, fmt.Errorf("%w: expected response, got %s", domain.ErrDecoding, v.Type())
	}
}

// DecodeCampaignInfo decodes the get-campaign-info answer. Every field is
// required and must have its declared type.
func DecodeCampaignInfo(res *stacks.ReadOnlyResult) (*domain.CampaignInfo, error) {
	v, err := unwrap(res)
	if err != nil {
		return nil, err
	}
	t, err := clarity.AsTuple(v)
	if err != nil {
		return nil, fmt.Errorf("%w: campaign info: %v", domain.ErrDecoding, err)
	}

	var info domain.CampaignInfo
	fields := []struct {
		name string
		dst  *uint64
	}{
		{"start", &info.Start},
		{"totalStx", &info.TotalSTX},
		{"totalSbtc", &info.TotalSBTC},
		{"purchaseCount", &info.PurchaseCount},
		{"ustxPrice", &info.PriceUSTX},
		{"satsPrice", &info.PriceSats},
	}
	for _, f := range fields {
		if *f.dst, err = t.Uint64(f.name); err != nil {
			return nil, fmt.Errorf("%w: campaign info: %v", domain.ErrDecoding, err)
		}
	}
	if info.IsCancelled, err = t.Bool("isCancelled"); err != nil {
		return nil, fmt.Errorf("%w: campaign info: %v", domain.ErrDecoding, err)
	}
	return &info, nil
}

// DecodePurchaseStatus decodes the get-purchase-status answer. A nil status
// with a nil error means the address has not purchased.
func DecodePurchaseStatus(res *stacks.ReadOnlyResult) (*domain.PurchaseStatus, error) {
	v, err := unwrap(res)
	if err != nil {
		return nil, err
	}

	switch o := v.(type) {
	case clarity.None:
		return nil, nil
	case clarity.Some:
		v = o.Value
	}

	t, err := clarity.AsTuple(v)
	if err != nil {
		return nil, fmt.Errorf("%w: purchase status: %v", domain.ErrDecoding, err)
	}

	var status domain.PurchaseStatus
	if status.STXAmount, err = t.Uint64("stxAmount"); err != nil {
		return nil, fmt.Errorf("%w: purchase status: %v", domain.ErrDecoding, err)
	}
	if status.SBTCAmount, err = t.Uint64("sbtcAmount"); err != nil {
		return nil, fmt.Errorf("%w: purchase status: %v", domain.ErrDecoding, err)
	}
	return &status, nil
}
