// Package txbuilder constructs contract-call transaction requests for the
// fundraising campaign. Construction is pure: no I/O, no clock, no randomness.
package txbuilder

import (
	"fmt"

	"stacks-fundraising/internal/domain"
)

// Action is a campaign contract function that mutates state.
type Action string

const (
	PurchaseWithSTX  Action = "purchase-with-stx"
	PurchaseWithSBTC Action = "purchase-with-sbtc"
	Initialize       Action = "initialize-campaign"
	Cancel           Action = "cancel-campaign"
	Withdraw         Action = "withdraw"
	Refund           Action = "refund"
)

// Actions lists every supported action.
func Actions() []Action {
	return []Action{PurchaseWithSTX, PurchaseWithSBTC, Initialize, Cancel, Withdraw, Refund}
}

// ParseAction maps a function name (or a short alias) to an Action.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "purchase-stx":
		return PurchaseWithSTX, true
	case "purchase-sbtc":
		return PurchaseWithSBTC, true
	case "initialize":
		return Initialize, true
	case "cancel":
		return Cancel, true
	}
	for _, a := range Actions() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// IsPurchase reports whether the action transfers a payment.
func (a Action) IsPurchase() bool {
	return a == PurchaseWithSTX || a == PurchaseWithSBTC
}

// PaymentAsset returns the asset a purchase action pays with.
func (a Action) PaymentAsset() (domain.Asset, bool) {
	switch a {
	case PurchaseWithSTX:
		return domain.STX, true
	case PurchaseWithSBTC:
		return domain.SBTC, true
	}
	return "", false
}

// PurchaseAction returns the purchase action paying with asset.
func PurchaseAction(asset domain.Asset) Action {
	if asset == domain.SBTC {
		return PurchaseWithSBTC
	}
	return PurchaseWithSTX
}

// Post-condition vocabulary, matching what wallet signers accept.
const (
	PostConditionSTX = "stx-postcondition"
	PostConditionFT  = "ft-postcondition"

	ConditionEq = "eq"

	PostConditionModeDeny = "deny"
	AnchorModeAny         = "any"
)

// PostCondition bounds what a principal may transfer in the transaction.
type PostCondition struct {
	Type      string `json:"type"`
	Address   string `json:"address"`
	Condition string `json:"condition"`
	// Asset is the fungible token identifier <addr>.<contract>::<token>; empty for STX.
	Asset  string `json:"asset,omitempty"`
	Amount uint64 `json:"amount"`
}

// TransactionRequest fully describes a contract call. It is a value: build it
// once, then log, retry or hand it to a signer without modification.
type TransactionRequest struct {
	Network           string          `json:"network"`
	ContractAddress   string          `json:"contractAddress"`
	ContractName      string          `json:"contractName"`
	FunctionName      string          `json:"functionName"`
	FunctionArgs      []string        `json:"functionArgs"` // 0x-hex serialized Clarity values
	PostConditions    []PostCondition `json:"postConditions"`
	PostConditionMode string          `json:"postConditionMode"`
	AnchorMode        string          `json:"anchorMode"`
}

// Action returns the action this request invokes.
func (r TransactionRequest) Action() Action {
	return Action(r.FunctionName)
}

// ContractID returns <address>.<name> of the target contract.
func (r TransactionRequest) ContractID() string {
	return r.ContractAddress + "." + r.ContractName
}

func (r TransactionRequest) String() string {
	return fmt.Sprintf("%s::%s on %s", r.ContractID(), r.FunctionName, r.Network)
}
