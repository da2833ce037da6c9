package models

// BillingSummary is the org dashboard aggregate, cached briefly in redis.
type BillingSummary struct {
	OutstandingCents int64            `json:"outstanding_cents"`
	CollectedCents   int64            `json:"collected_cents"`
	InvoiceCounts    map[string]int64 `json:"invoice_counts"`
	PaymentCount     int64            `json:"payment_count"`
	UnappliedCredits int64            `json:"unapplied_credit_notes"`
}
