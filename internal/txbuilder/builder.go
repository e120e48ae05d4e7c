package txbuilder

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is returned by Build for an action it does not know.
var ErrUnknownAction = errors.New("unknown campaign action")

// ContractID identifies a deployed contract.
type ContractID struct {
	Address string
	Name    string
}

func (c ContractID) String() string {
	return c.Address + "." + c.Name
}

// Contracts names the contracts the campaign interacts with.
type Contracts struct {
	Fundraising ContractID
	SBTC        ContractID
	SBTCAsset   string // fungible token name inside the sBTC contract
}

// SBTCAssetID returns the fully qualified sBTC token identifier.
func (c Contracts) SBTCAssetID() string {
	return c.SBTC.String() + "::" + c.SBTCAsset
}

// PurchaseParams are the inputs of a purchase action.
type PurchaseParams struct {
	Address string // buyer; may be empty when no wallet is connected
	Price   uint64 // smallest unit of the chosen asset
}

// Builder constructs requests against a fixed set of contracts.
type Builder struct {
	contracts Contracts
}

// New creates a Builder.
func New(contracts Contracts) *Builder {
	return &Builder{contracts: contracts}
}

// Contracts returns the contracts the builder targets.
func (b *Builder) Contracts() Contracts {
	return b.contracts
}

// PurchaseWithSTX builds a purchase paid in micro-STX. The buyer must send
// exactly Price micro-STX.
func (b *Builder) PurchaseWithSTX(network string, p PurchaseParams) TransactionRequest {
	return b.call(network, PurchaseWithSTX, stxSent(p.Address, p.Price))
}

// PurchaseWithSBTC builds a purchase paid in sats. The buyer must send
// exactly Price sats of the sBTC token.
func (b *Builder) PurchaseWithSBTC(network string, p PurchaseParams) TransactionRequest {
	return b.call(network, PurchaseWithSBTC, PostCondition{
		Type:      PostConditionFT,
		Address:   p.Address,
		Condition: ConditionEq,
		Asset:     b.contracts.SBTCAssetID(),
		Amount:    p.Price,
	})
}

// Initialize builds the campaign initialization call.
func (b *Builder) Initialize(network, address string) TransactionRequest {
	return b.call(network, Initialize, stxSent(address, 0))
}

// Cancel builds the campaign cancellation call.
func (b *Builder) Cancel(network, address string) TransactionRequest {
	return b.call(network, Cancel, stxSent(address, 0))
}

// Withdraw builds the owner withdrawal call.
func (b *Builder) Withdraw(network, address string) TransactionRequest {
	return b.call(network, Withdraw, stxSent(address, 0))
}

// Refund builds the buyer refund call for a cancelled campaign.
func (b *Builder) Refund(network, address string) TransactionRequest {
	return b.call(network, Refund, stxSent(address, 0))
}

// Build dispatches on action. Price is ignored for non-purchase actions.
func (b *Builder) Build(action Action, network string, p PurchaseParams) (TransactionRequest, error) {
	switch action {
	case PurchaseWithSTX:
		return b.PurchaseWithSTX(network, p), nil
	case PurchaseWithSBTC:
		return b.PurchaseWithSBTC(network, p), nil
	case Initialize:
		return b.Initialize(network, p.Address), nil
	case Cancel:
		return b.Cancel(network, p.Address), nil
	case Withdraw:
		return b.Withdraw(network, p.Address), nil
	case Refund:
		return b.Refund(network, p.Address), nil
	}
	return TransactionRequest{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func (b *Builder) call(network string, action Action, pc PostCondition) TransactionRequest {
	return TransactionRequest{
		Network:           network,
		ContractAddress:   b.contracts.Fundraising.Address,
		ContractName:      b.contracts.Fundraising.Name,
		FunctionName:      string(action),
		FunctionArgs:      []string{},
		PostConditions:    []PostCondition{pc},
		PostConditionMode: PostConditionModeDeny,
		AnchorMode:        AnchorModeAny,
	}
}

// stxSent asserts address sends exactly amount micro-STX.
func stxSent(address string, amount uint64) PostCondition {
	return PostCondition{
		Type:      PostConditionSTX,
		Address:   address,
		Condition: ConditionEq,
		Amount:    amount,
	}
}
