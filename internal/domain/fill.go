package domain

// FillPoint records one observed fill increment for timeseries storage.
// Recording is observational only; the core never reads fills back on the
// event-processing path.
type FillPoint struct {
	ItemID       int
	Side         OfferSide
	Quantity     int
	PricePerUnit int64
	SlotIndex    int
	FlipID       string
	TimestampMs  int64
}
