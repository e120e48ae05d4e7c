// Package query polls read-only contract state and caches the latest result
// of every query.
package query

import (
	"context"
	"fmt"

	"stacks-fundraising/internal/clarity"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/stacks"
	"stacks-fundraising/internal/txbuilder"
)

// Read-only functions of the fundraising contract.
const (
	FnCampaignInfo   = "get-campaign-info"
	FnPurchaseStatus = "get-purchase-status"
)

// Reader performs the campaign read-only calls.
type Reader struct {
	client   stacks.ReadOnlyCaller
	contract txbuilder.ContractID
}

// NewReader creates a Reader for contract.
func NewReader(client stacks.ReadOnlyCaller, contract txbuilder.ContractID) *Reader {
	return &Reader{client: client, contract: contract}
}

// CampaignInfo fetches and decodes the campaign snapshot.
func (r *Reader) CampaignInfo(ctx context.Context) (*domain.CampaignInfo, error) {
	res, err := r.client.CallReadOnly(ctx, stacks.ReadOnlyCall{
		ContractAddress: r.contract.Address,
		ContractName:    r.contract.Name,
		FunctionName:    FnCampaignInfo,
		Sender:          r.contract.Address,
	})
	if err != nil {
		return nil, err
	}
	return DecodeCampaignInfo(res)
}

// PurchaseStatus fetches the purchase record of address. A nil status with a
// nil error means no purchase.
func (r *Reader) PurchaseStatus(ctx context.Context, address string) (*domain.PurchaseStatus, error) {
	if address == "" {
		return nil, domain.ErrPreconditionUnmet
	}
	principal, err := clarity.ParsePrincipal(address)
	if err != nil {
		return nil, fmt.Errorf("purchase status: %w", err)
	}

	res, err := r.client.CallReadOnly(ctx, stacks.ReadOnlyCall{
		ContractAddress: r.contract.Address,
		ContractName:    r.contract.Name,
		FunctionName:    FnPurchaseStatus,
		Sender:          r.contract.Address,
		Args:            []string{clarity.EncodeHex(principal)},
	})
	if err != nil {
		return nil, err
	}
	return DecodePurchaseStatus(res)
}
