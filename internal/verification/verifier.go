// Package verification checks ledger invariants over live and archived
// flips. It is used after replays and in tests to prove that bookkeeping
// stayed conservative regardless of event gaps.
package verification

import (
	"fmt"

	"exchange-flip-assistant/internal/domain"
)

// Violation represents one broken invariant on one flip.
type Violation struct {
	Rule   string // short rule name
	FlipID string
	Detail string
}

// Report contains results for batch verification.
type Report struct {
	TotalFlips int
	ValidFlips int
	Violations []Violation
}

// Clean reports whether no violations were found.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// VerifyFlip checks a single flip's internal consistency.
func VerifyFlip(f *domain.Flip) []Violation {
	var violations []Violation

	add := func(rule, format string, args ...interface{}) {
		violations = append(violations, Violation{
			Rule:   rule,
			FlipID: f.FlipID,
			Detail: fmt.Sprintf(format, args...),
		})
	}

	if f.QuantityBought < 0 || f.QuantitySold < 0 {
		add("non_negative_quantities", "bought=%d sold=%d", f.QuantityBought, f.QuantitySold)
	}
	if f.GrossSpent < 0 || f.GrossReceived < 0 || f.TaxPaid < 0 {
		add("non_negative_totals", "spent=%d received=%d tax=%d", f.GrossSpent, f.GrossReceived, f.TaxPaid)
	}
	if f.QuantitySold > f.QuantityBought {
		add("sold_within_bought", "sold=%d exceeds bought=%d", f.QuantitySold, f.QuantityBought)
	}
	if f.TaxPaid > f.GrossReceived {
		add("tax_within_received", "tax=%d exceeds received=%d", f.TaxPaid, f.GrossReceived)
	}

	if f.Origin == domain.OriginRecommendation {
		if f.RecommendedBuyPrice == nil || f.RecommendedSellPrice == nil {
			add("recommendation_prices", "recommendation-origin flip missing recommended prices")
		}
		if f.QuantityLimit <= 0 {
			add("recommendation_limit", "quantity_limit=%d", f.QuantityLimit)
		}
	}

	if f.Terminal() && f.LinkedSlot != nil {
		add("terminal_unlinked", "terminal flip still linked to slot %d", *f.LinkedSlot)
	}

	if f.Status == domain.StatusCompleted {
		if f.QuantityBought <= 0 {
			add("completed_bought", "completed with bought=%d", f.QuantityBought)
		}
		if f.QuantitySold != f.QuantityBought {
			add("completed_sold_all", "sold=%d bought=%d", f.QuantitySold, f.QuantityBought)
		}
		if want := f.GrossReceived - f.GrossSpent - f.TaxPaid; f.RealizedProfit != want {
			add("profit_conservation", "realized=%d want received-spent-tax=%d", f.RealizedProfit, want)
		}
		if f.BoughtAt == nil || f.SoldAt == nil {
			add("completed_timestamps", "bought_at or sold_at missing")
		}
	}

	return violations
}

// VerifyFlips checks every flip plus cross-flip link uniqueness.
func VerifyFlips(flips []*domain.Flip) *Report {
	report := &Report{TotalFlips: len(flips)}

	linked := make(map[int]string)
	for _, f := range flips {
		violations := VerifyFlip(f)

		if f.LinkedSlot != nil {
			if other, taken := linked[*f.LinkedSlot]; taken {
				violations = append(violations, Violation{
					Rule:   "link_uniqueness",
					FlipID: f.FlipID,
					Detail: fmt.Sprintf("slot %d already linked to flip %s", *f.LinkedSlot, other),
				})
			} else {
				linked[*f.LinkedSlot] = f.FlipID
			}
		}

		if len(violations) == 0 {
			report.ValidFlips++
		}
		report.Violations = append(report.Violations, violations...)
	}

	return report
}
