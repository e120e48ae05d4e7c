package campaign

import (
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/txbuilder"
)

const (
	purchaseDetail      = "Processing purchase."
	purchaseCancelTitle = "Cancelled"
	salePricesNotFound  = "Sale prices not found"
)

var actionMessages = map[txbuilder.Action]executor.Messages{
	txbuilder.Initialize: {Success: "Campaign was initialized", Failure: "Campaign was not initialized"},
	txbuilder.Cancel:     {Success: "Campaign cancellation was requested", Failure: "Campaign was not cancelled"},
	txbuilder.Withdraw:   {Success: "Withdraw requested", Failure: "Withdraw not requested"},
	txbuilder.Refund:     {Success: "Refund requested", Failure: "Refund not requested"},
	txbuilder.PurchaseWithSTX: {
		Success:     "Thank you!",
		Failure:     "Failed to purchase",
		Detail:      purchaseDetail,
		CancelTitle: purchaseCancelTitle,
	},
	txbuilder.PurchaseWithSBTC: {
		Success:     "Thank you!",
		Failure:     "Failed to purchase",
		Detail:      purchaseDetail,
		CancelTitle: purchaseCancelTitle,
	},
}

// MessagesFor returns the notification texts of action.
func MessagesFor(action txbuilder.Action) executor.Messages {
	return actionMessages[action]
}
