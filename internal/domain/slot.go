package domain

// SlotCount is the number of concurrent exchange order slots a player has.
const SlotCount = 8

// OfferSide is the direction of an exchange offer.
type OfferSide string

// Offer side constants.
const (
	SideBuy  OfferSide = "BUY"
	SideSell OfferSide = "SELL"
	SideNone OfferSide = "NONE"
)

// SlotStatus is the observed status of an order slot.
type SlotStatus string

// Slot status constants.
const (
	SlotEmpty      SlotStatus = "EMPTY"
	SlotInProgress SlotStatus = "IN_PROGRESS"
	SlotFinished   SlotStatus = "FINISHED"
	SlotCancelled  SlotStatus = "CANCELLED"
)

// OrderSlot is one of eight fixed-index exchange order slots as observed in a
// single snapshot. Slots carry no persistent identity: each snapshot replaces
// the previous contents wholesale and the monitor diffs consecutive snapshots.
type OrderSlot struct {
	Index           int        // 0..7
	Side            OfferSide  // BUY, SELL, or NONE when empty
	ItemID          int        // item identifier, 0 when empty
	QuantityTotal   int        // requested quantity
	QuantityFilled  int        // filled so far
	PricePerUnit    int64      // offer price in coins
	AmountExchanged int64      // coins spent (buy) or received (sell) so far
	Status          SlotStatus
}

// IsEmpty reports whether the slot holds no offer.
func (s OrderSlot) IsEmpty() bool {
	return s.Status == SlotEmpty || s.Side == SideNone || s.ItemID == 0
}

// SameOffer reports whether two observations plausibly describe the same
// offer occupying the slot (same item and direction).
func (s OrderSlot) SameOffer(other OrderSlot) bool {
	return s.ItemID == other.ItemID && s.Side == other.Side
}

// SlotSnapshot is a full observation of all eight slots at one instant.
type SlotSnapshot struct {
	Slots     [SlotCount]OrderSlot
	Timestamp int64 // milliseconds since epoch
}
