package cart

import "github.com/shopspring/decimal"

// ComputeTotals derives subtotal, tax and grand total from lines. Amounts are
// exact; nothing is rounded.
func ComputeTotals(lines []Line, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	items := 0
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total())
		items += line.Quantity
	}
	tax := subtotal.Mul(taxRate)
	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		GrandTotal: subtotal.Add(tax),
		TaxRate:    taxRate,
		LineCount:  len(lines),
		ItemCount:  items,
	}
}
