package domain

// Recommendation is a scored flip candidate produced by the external
// recommendation service. Read-only to this system.
type Recommendation struct {
	ItemID        int
	ItemName      string
	BuyPrice      int64
	SellPrice     int64
	QuantityLimit int
	Liquidity     float64 // daily traded volume score
	RiskScore     float64 // 0 (safe) .. 1 (speculative)
	Style         string  // risk style tag, e.g. "conservative"
	IssuedAt      int64   // milliseconds since epoch
}

// Margin returns the pre-tax profit per unit implied by the recommendation.
func (r Recommendation) Margin() int64 {
	return r.SellPrice - r.BuyPrice
}
