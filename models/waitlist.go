package models

// WaitlistEntry is a queued request for a book that had no free unit.
type WaitlistEntry struct {
	BookID     uint  `json:"book_id"`
	CustomerID uint  `json:"customer_id"`
	Tier       Tier  `json:"tier"`
	Priority   int   `json:"priority"`
	Days       int   `json:"days"`
	Seq        int64 `json:"seq"`
}

// PriorityFor maps a tier to its waitlist band. Lower dequeues first.
func PriorityFor(t Tier) int {
	switch t {
	case TierPremium:
		return 0
	case TierPlus:
		return 1
	default:
		return 3
	}
}
