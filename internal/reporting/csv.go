package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders item metrics as CSV string.
func RenderCSV(metrics []ItemMetricRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("item_id,flips,completed,quantity_traded,realized_profit,tax_paid,best_flip,worst_flip\n")

	// Rows
	for _, m := range metrics {
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%d,%d,%d,%d,%d\n",
			m.ItemID,
			m.Flips,
			m.Completed,
			m.QuantityTraded,
			m.RealizedProfit,
			m.TaxPaid,
			m.BestFlip,
			m.WorstFlip,
		))
	}

	return sb.String()
}
