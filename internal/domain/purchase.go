package domain

// PurchaseStatus is the per-address purchase record. Its presence means the
// address has purchased; absence is represented by a nil pointer.
type PurchaseStatus struct {
	STXAmount  uint64 `json:"stxAmount"`
	SBTCAmount uint64 `json:"sbtcAmount"`
}

// HasPurchased reports whether a purchase record is present.
func HasPurchased(s *PurchaseStatus) bool {
	return s != nil
}
