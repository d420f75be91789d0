package reporting

import "time"

// Report summarizes archived flips over a time range.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RangeStart  int64 // Unix ms
	RangeEnd    int64 // Unix ms

	// Totals
	Summary Summary

	// Per-item breakdown (sorted by profit DESC, then item_id ASC)
	ItemMetrics []ItemMetricRow

	// Individual flips (sorted by realized profit DESC)
	TopFlips []FlipRow
}

// Summary contains session-level totals.
type Summary struct {
	TotalFlips      int
	CompletedFlips  int
	DismissedFlips  int
	OrganicFlips    int
	RecommendedWins int // completed recommendation-origin flips with positive profit

	QuantityTraded int   // units bought across completed flips
	GrossSpent     int64 // coins
	GrossReceived  int64
	TaxPaid        int64
	RealizedProfit int64

	WinRate       float64 // completed flips with positive profit / completed flips
	AvgHoldMs     int64   // mean bought_at..sold_at duration over completed flips
	AvgProfitFlip int64   // realized profit / completed flips
}

// ItemMetricRow aggregates completed flips per item.
type ItemMetricRow struct {
	ItemID         int
	Flips          int
	Completed      int
	QuantityTraded int
	RealizedProfit int64
	TaxPaid        int64
	BestFlip       int64 // highest single-flip profit
	WorstFlip      int64 // lowest single-flip profit
}

// FlipRow is one archived flip in the report.
type FlipRow struct {
	FlipID         string
	ItemID         int
	Origin         string
	QuantityBought int
	QuantitySold   int
	GrossSpent     int64
	GrossReceived  int64
	TaxPaid        int64
	RealizedProfit int64
	HoldMs         int64
}
