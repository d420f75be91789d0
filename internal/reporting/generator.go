package reporting

import (
	"context"
	"sort"
	"time"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/storage"
)

// topFlipLimit caps the individual flip table.
const topFlipLimit = 25

// Generator produces reports from archived flips.
type Generator struct {
	historyStore storage.FlipHistoryStore
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(historyStore storage.FlipHistoryStore) *Generator {
	return &Generator{
		historyStore: historyStore,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report over flips created within [start, end].
func (g *Generator) Generate(ctx context.Context, start, end int64) (*Report, error) {
	flips, err := g.historyStore.GetByTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt: g.now(),
		RangeStart:  start,
		RangeEnd:    end,
		Summary:     generateSummary(flips),
		ItemMetrics: generateItemMetrics(flips),
		TopFlips:    generateTopFlips(flips),
	}, nil
}

func generateSummary(flips []*domain.Flip) Summary {
	var s Summary
	s.TotalFlips = len(flips)

	var wins int
	var holdTotal int64
	var holdCount int
	for _, f := range flips {
		switch f.Status {
		case domain.StatusCompleted:
			s.CompletedFlips++
			s.QuantityTraded += f.QuantityBought
			s.GrossSpent += f.GrossSpent
			s.GrossReceived += f.GrossReceived
			s.TaxPaid += f.TaxPaid
			s.RealizedProfit += f.RealizedProfit
			if f.RealizedProfit > 0 {
				wins++
				if f.Origin == domain.OriginRecommendation {
					s.RecommendedWins++
				}
			}
			if f.BoughtAt != nil && f.SoldAt != nil {
				holdTotal += *f.SoldAt - *f.BoughtAt
				holdCount++
			}
		case domain.StatusDismissed:
			s.DismissedFlips++
		}
		if f.Origin == domain.OriginOrganic {
			s.OrganicFlips++
		}
	}

	if s.CompletedFlips > 0 {
		s.WinRate = float64(wins) / float64(s.CompletedFlips)
		s.AvgProfitFlip = s.RealizedProfit / int64(s.CompletedFlips)
	}
	if holdCount > 0 {
		s.AvgHoldMs = holdTotal / int64(holdCount)
	}
	return s
}

func generateItemMetrics(flips []*domain.Flip) []ItemMetricRow {
	byItem := make(map[int]*ItemMetricRow)
	for _, f := range flips {
		row, ok := byItem[f.ItemID]
		if !ok {
			row = &ItemMetricRow{ItemID: f.ItemID}
			byItem[f.ItemID] = row
		}
		row.Flips++
		if f.Status != domain.StatusCompleted {
			continue
		}
		row.Completed++
		row.QuantityTraded += f.QuantityBought
		row.RealizedProfit += f.RealizedProfit
		row.TaxPaid += f.TaxPaid
		if row.Completed == 1 || f.RealizedProfit > row.BestFlip {
			row.BestFlip = f.RealizedProfit
		}
		if row.Completed == 1 || f.RealizedProfit < row.WorstFlip {
			row.WorstFlip = f.RealizedProfit
		}
	}

	rows := make([]ItemMetricRow, 0, len(byItem))
	for _, row := range byItem {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RealizedProfit != rows[j].RealizedProfit {
			return rows[i].RealizedProfit > rows[j].RealizedProfit
		}
		return rows[i].ItemID < rows[j].ItemID
	})
	return rows
}

func generateTopFlips(flips []*domain.Flip) []FlipRow {
	var rows []FlipRow
	for _, f := range flips {
		if f.Status != domain.StatusCompleted {
			continue
		}
		row := FlipRow{
			FlipID:         f.FlipID,
			ItemID:         f.ItemID,
			Origin:         string(f.Origin),
			QuantityBought: f.QuantityBought,
			QuantitySold:   f.QuantitySold,
			GrossSpent:     f.GrossSpent,
			GrossReceived:  f.GrossReceived,
			TaxPaid:        f.TaxPaid,
			RealizedProfit: f.RealizedProfit,
		}
		if f.BoughtAt != nil && f.SoldAt != nil {
			row.HoldMs = *f.SoldAt - *f.BoughtAt
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RealizedProfit != rows[j].RealizedProfit {
			return rows[i].RealizedProfit > rows[j].RealizedProfit
		}
		return rows[i].FlipID < rows[j].FlipID
	})
	if len(rows) > topFlipLimit {
		rows = rows[:topFlipLimit]
	}
	return rows
}
