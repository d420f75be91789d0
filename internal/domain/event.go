package domain

// EventKind classifies a slot lifecycle event.
type EventKind string

// Event kind constants.
const (
	EventOpened    EventKind = "OPENED"
	EventProgress  EventKind = "PROGRESS"
	EventFilled    EventKind = "FILLED"
	EventCancelled EventKind = "CANCELLED"
	EventCleared   EventKind = "CLEARED"
)

// SlotEvent is a discrete lifecycle event derived by diffing two consecutive
// observations of the same slot. Events are immutable and consumed once by
// the ledger.
type SlotEvent struct {
	Kind      EventKind
	SlotIndex int
	Side      OfferSide
	ItemID    int

	// QuantityDelta is the fill increase observed since the previous
	// snapshot. Zero for OPENED and for terminal events whose fills were
	// already observed incrementally.
	QuantityDelta int

	// QuantityFilled and QuantityTotal are the running totals at the time
	// of the event. For CLEARED these are the last known totals before the
	// slot went empty.
	QuantityFilled int
	QuantityTotal  int

	PricePerUnit int64
	Timestamp    int64 // milliseconds since epoch
}

// Terminal reports whether the event ends the slot occupancy.
func (e SlotEvent) Terminal() bool {
	return e.Kind == EventFilled || e.Kind == EventCancelled || e.Kind == EventCleared
}
