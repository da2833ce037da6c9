package models

import "fmt"

// LineItem is one priced line on a quote, invoice or credit note.
// Amounts are integer minor currency units (cents); TaxPct is a flat
// percentage (0-100). Line items are stored as an ordered JSON list on
// their parent record, never as standalone rows.
type LineItem struct {
	Label          string  `json:"label"`
	Qty            int64   `json:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	TaxPct         float64 `json:"tax_pct"`
}

// Validate rejects shapes that must never reach storage.
func (li LineItem) Validate() error {
	if li.Label == "" {
		return fmt.Errorf("%w: line item label is required", ErrValidation)
	}
	if li.Qty <= 0 {
		return fmt.Errorf("%w: line item qty must be positive", ErrValidation)
	}
	if li.UnitPriceCents < 0 {
		return fmt.Errorf("%w: line item unit price cannot be negative", ErrValidation)
	}
	if li.TaxPct < 0 || li.TaxPct > 100 {
		return fmt.Errorf("%w: line item tax percent must be between 0 and 100", ErrValidation)
	}
	return nil
}
