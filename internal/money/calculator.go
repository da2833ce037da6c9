// Package money computes line-item totals in integer minor currency units.
// No floating point touches a monetary value: tax percentages are scaled to
// basis points once, and the only rounding happens on the final division of
// each line's tax, round half up.
package money

import (
	"fmt"
	"math"

	"poolops-backend/internal/models"
)

// Totals is the result of ComputeTotals. TotalCents is always the exact sum
// of SubtotalCents and TaxCents.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	TaxCents      int64 `json:"tax_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// ComputeTotals derives subtotal, tax and total for an ordered list of line
// items. Each line is rounded independently before summing:
//
//	lineTotal = qty * unitPriceCents
//	lineTax   = roundHalfUp(lineTotal * taxPct / 100)
//
// The function is pure and must be re-invoked whenever items change; totals
// read back from storage are never trusted after an edit.
func ComputeTotals(items []models.LineItem) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, fmt.Errorf("%w: at least one line item is required", models.ErrValidation)
	}

	var t Totals
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return Totals{}, fmt.Errorf("item %d: %w", i, err)
		}

		lineTotal := item.Qty * item.UnitPriceCents
		t.SubtotalCents += lineTotal
		t.TaxCents += lineTax(lineTotal, item.TaxPct)
	}
	t.TotalCents = t.SubtotalCents + t.TaxCents
	return t, nil
}

// lineTax rounds half up on the final division only, never per unit.
func lineTax(lineTotalCents int64, taxPct float64) int64 {
	if taxPct == 0 || lineTotalCents == 0 {
		return 0
	}
	// Scale the percentage to integer basis points so the tax itself is
	// computed in integer arithmetic.
	taxBps := int64(math.Round(taxPct * 100))
	return (lineTotalCents*taxBps + 5000) / 10000
}
