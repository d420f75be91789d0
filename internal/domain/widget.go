package domain

import (
	"strconv"
	"strings"
)

// WidgetSnapshot is an observation of the exchange offer-setup interface.
// Field texts are reported verbatim; the host makes no parsing guarantees.
type WidgetSnapshot struct {
	OfferOpen      bool
	Side           OfferSide // side of the open offer editor, SideNone if closed
	SelectedItemID int       // 0 when no item is selected
	QuantityText   string
	PriceText      string
	Timestamp      int64 // milliseconds since epoch
}

// QuantityValue parses the quantity field, returning 0 for empty or
// unparseable text.
func (w WidgetSnapshot) QuantityValue() int {
	return parseField(w.QuantityText)
}

// PriceValue parses the price field, returning 0 for empty or unparseable
// text.
func (w WidgetSnapshot) PriceValue() int {
	return parseField(w.PriceText)
}

// parseField tolerates the thousands separators the interface renders.
func parseField(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, ",", "")
	if text == "" {
		return 0
	}
	v, err := strconv.Atoi(text)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// CommandField identifies the interface field a command targets.
type CommandField string

// Command field constants.
const (
	FieldQuantity CommandField = "QUANTITY"
	FieldPrice    CommandField = "PRICE"
)

// Command asks the host input-injection layer to set a numeric field.
// Fire-and-forget: application is best-effort and only observable through a
// later widget snapshot.
type Command struct {
	Field CommandField
	Value int64
}
