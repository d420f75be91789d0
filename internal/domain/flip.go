package domain

// FlipStatus is the lifecycle state of a flip.
type FlipStatus string

// Flip status constants. A flip moves strictly forward
// RECOMMENDED → PENDING_BUY → ACTIVE → PENDING_SELL → COMPLETED, except that
// ACTIVE ⇄ PENDING_SELL may alternate while partial sells occur and a
// zero-fill buy cancellation returns PENDING_BUY to RECOMMENDED.
const (
	StatusRecommended FlipStatus = "RECOMMENDED"
	StatusPendingBuy  FlipStatus = "PENDING_BUY"
	StatusActive      FlipStatus = "ACTIVE"
	StatusPendingSell FlipStatus = "PENDING_SELL"
	StatusCompleted   FlipStatus = "COMPLETED"
	StatusDismissed   FlipStatus = "DISMISSED"
)

// FlipOrigin records how a flip came to exist.
type FlipOrigin string

// Flip origin constants.
const (
	OriginRecommendation FlipOrigin = "RECOMMENDATION"
	OriginOrganic        FlipOrigin = "ORGANIC"
)

// Flip is one buy-then-sell trading cycle tracked end to end. Flips are owned
// exclusively by the ledger; everything handed outward is a copy.
type Flip struct {
	FlipID string
	ItemID int
	Status FlipStatus
	Origin FlipOrigin

	// Recommended prices are nil for organic flips detected from an
	// unmatched buy; the observed buy price is then used as the implied
	// recommendation.
	RecommendedBuyPrice  *int64
	RecommendedSellPrice *int64
	QuantityLimit        int // from the recommendation, 0 when organic

	// LinkedSlot is set only while an offer for this flip occupies a slot.
	// It is a weak back-reference: the ledger keys the relation by slot
	// position, the flip never owns the slot.
	LinkedSlot *int

	QuantityBought int
	QuantitySold   int
	GrossSpent     int64
	GrossReceived  int64
	TaxPaid        int64
	RealizedProfit int64

	CreatedAt int64 // milliseconds since epoch
	BoughtAt  *int64
	SoldAt    *int64

	// Sequence is a ledger-assigned monotonic counter used for
	// deterministic tie-breaking when creation timestamps collide.
	Sequence uint64
}

// Terminal reports whether the flip has reached a final status.
func (f *Flip) Terminal() bool {
	return f.Status == StatusCompleted || f.Status == StatusDismissed
}

// ExpectedSide returns the offer side the flip is waiting on next, or
// SideNone for terminal flips.
func (f *Flip) ExpectedSide() OfferSide {
	switch f.Status {
	case StatusRecommended, StatusPendingBuy:
		return SideBuy
	case StatusActive, StatusPendingSell:
		return SideSell
	default:
		return SideNone
	}
}

// RemainingToSell returns the quantity bought but not yet sold.
func (f *Flip) RemainingToSell() int {
	return f.QuantityBought - f.QuantitySold
}

// Clone returns a deep copy of the flip.
func (f *Flip) Clone() *Flip {
	c := *f
	c.RecommendedBuyPrice = cloneInt64(f.RecommendedBuyPrice)
	c.RecommendedSellPrice = cloneInt64(f.RecommendedSellPrice)
	c.LinkedSlot = cloneInt(f.LinkedSlot)
	c.BoughtAt = cloneInt64(f.BoughtAt)
	c.SoldAt = cloneInt64(f.SoldAt)
	return &c
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FlipChange notifies presentation layers that a flip was created or mutated.
type FlipChange struct {
	FlipID    string
	ItemID    int
	OldStatus FlipStatus
	NewStatus FlipStatus
	Flip      *Flip // snapshot after the change
}
