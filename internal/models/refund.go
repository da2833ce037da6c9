package models

import "time"

// Refund reverses part or all of a single payment. At most one refund
// exists per payment, enforced by a unique index on payment_id.
type Refund struct {
	ID          string    `json:"id"`
	OrgID       string    `json:"org_id"`
	PaymentID   string    `json:"payment_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason,omitempty"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	RefundedAt  time.Time `json:"refunded_at"`
	CreatedAt   time.Time `json:"created_at"`
}
