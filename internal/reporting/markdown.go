package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Flip Session Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Range: %d .. %d (ms)\n\n", r.RangeStart, r.RangeEnd))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Flips | %d |\n", r.Summary.TotalFlips))
	sb.WriteString(fmt.Sprintf("| Completed | %d |\n", r.Summary.CompletedFlips))
	sb.WriteString(fmt.Sprintf("| Dismissed | %d |\n", r.Summary.DismissedFlips))
	sb.WriteString(fmt.Sprintf("| Organic | %d |\n", r.Summary.OrganicFlips))
	sb.WriteString(fmt.Sprintf("| Quantity Traded | %d |\n", r.Summary.QuantityTraded))
	sb.WriteString(fmt.Sprintf("| Gross Spent | %d |\n", r.Summary.GrossSpent))
	sb.WriteString(fmt.Sprintf("| Gross Received | %d |\n", r.Summary.GrossReceived))
	sb.WriteString(fmt.Sprintf("| Tax Paid | %d |\n", r.Summary.TaxPaid))
	sb.WriteString(fmt.Sprintf("| Realized Profit | %d |\n", r.Summary.RealizedProfit))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f |\n", r.Summary.WinRate))
	sb.WriteString(fmt.Sprintf("| Avg Hold (ms) | %d |\n", r.Summary.AvgHoldMs))
	sb.WriteString(fmt.Sprintf("| Avg Profit / Flip | %d |\n", r.Summary.AvgProfitFlip))
	sb.WriteString("\n")

	// Per-item metrics
	sb.WriteString("## Item Metrics\n\n")
	if len(r.ItemMetrics) > 0 {
		sb.WriteString("| Item | Flips | Completed | Quantity | Profit | Tax | Best | Worst |\n")
		sb.WriteString("|------|-------|-----------|----------|--------|-----|------|-------|\n")
		for _, m := range r.ItemMetrics {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d | %d | %d |\n",
				m.ItemID, m.Flips, m.Completed, m.QuantityTraded,
				m.RealizedProfit, m.TaxPaid, m.BestFlip, m.WorstFlip))
		}
	} else {
		sb.WriteString("No item metrics available.\n")
	}
	sb.WriteString("\n")

	// Top flips
	sb.WriteString("## Top Flips\n\n")
	if len(r.TopFlips) > 0 {
		sb.WriteString("| Flip | Item | Origin | Bought | Sold | Spent | Received | Tax | Profit | Hold (ms) |\n")
		sb.WriteString("|------|------|--------|--------|------|-------|----------|-----|--------|----------|\n")
		for _, f := range r.TopFlips {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %d | %d | %d | %d | %d | %d | %d |\n",
				shortID(f.FlipID), f.ItemID, f.Origin,
				f.QuantityBought, f.QuantitySold,
				f.GrossSpent, f.GrossReceived, f.TaxPaid, f.RealizedProfit, f.HoldMs))
		}
	} else {
		sb.WriteString("No completed flips in range.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// shortID truncates a flip ID for table display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
