package domain

// DefaultTaxRateBps is the exchange sale tax in basis points (2%).
const DefaultTaxRateBps = 200

// SaleTax returns the tax owed on a single fill increment, rounded down.
// Tax is assessed per increment rather than per flip total so that partial
// fills accumulate the same total the exchange charges.
func SaleTax(quantity int, pricePerUnit int64, rateBps int) int64 {
	if quantity <= 0 || pricePerUnit <= 0 || rateBps <= 0 {
		return 0
	}
	gross := int64(quantity) * pricePerUnit
	return gross * int64(rateBps) / 10000
}
