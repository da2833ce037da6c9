package models

import "time"

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InvoiceMetadata tags an invoice with its billing-period origin. Only set
// on auto-generated invoices; the (ServicePlanID, PeriodStart) pair is the
// scheduler's dedup key.
type InvoiceMetadata struct {
	ServicePlanID string `json:"service_plan_id,omitempty"`
	PeriodStart   string `json:"period_start,omitempty"`
	PeriodEnd     string `json:"period_end,omitempty"`
	VisitCount    int    `json:"visit_count,omitempty"`
	AutoGenerated bool   `json:"auto_generated,omitempty"`
}

// Invoice is the central billing record. PaidCents is derived exclusively
// by reconciliation from child payments, refunds and applied credit notes;
// no other code path writes it.
type Invoice struct {
	ID            string          `json:"id"`
	OrgID         string          `json:"org_id"`
	ClientID      string          `json:"client_id"`
	PoolID        *string         `json:"pool_id,omitempty"`
	VisitID       *string         `json:"visit_id,omitempty"`
	QuoteID       *string         `json:"quote_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	Currency      string          `json:"currency"`
	Items         []LineItem      `json:"items"`
	SubtotalCents int64           `json:"subtotal_cents"`
	TaxCents      int64           `json:"tax_cents"`
	TotalCents    int64           `json:"total_cents"`
	PaidCents     int64           `json:"paid_cents"`
	Status        InvoiceStatus   `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	IssuedAt      *time.Time      `json:"issued_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Metadata      InvoiceMetadata `json:"metadata"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BalanceCents is the outstanding amount, never negative.
func (i *Invoice) BalanceCents() int64 {
	if b := i.TotalCents - i.PaidCents; b > 0 {
		return b
	}
	return 0
}

// ApplyReconciliation recomputes PaidCents, Status and PaidAt from the
// summed child records. paymentSum covers every payment that moved money
// in, refunded ones included, refundSum the refunds against them,
// creditSum the applied
// credit notes. The result is clamped to [0, TotalCents]. A refund that
// reopens a paid invoice drops it back to sent; a partial balance never
// regresses sent to draft. Cancelled invoices are left untouched.
func (i *Invoice) ApplyReconciliation(paymentSum, refundSum, creditSum int64, now time.Time) {
	if i.Status == InvoiceStatusCancelled {
		return
	}

	paid := paymentSum - refundSum
	if paid < 0 {
		paid = 0
	}
	paid += creditSum
	if paid > i.TotalCents {
		paid = i.TotalCents
	}
	i.PaidCents = paid

	if i.PaidCents >= i.TotalCents {
		if i.Status != InvoiceStatusPaid {
			i.Status = InvoiceStatusPaid
			t := now
			i.PaidAt = &t
		}
		return
	}

	// Balance reopened (refund after full payment) or still outstanding.
	if i.Status == InvoiceStatusPaid {
		i.Status = InvoiceStatusSent
		i.PaidAt = nil
	}
}

// CreateInvoiceRequest is the payload for POST /api/invoices. Either Items
// or QuoteID must be set, not both.
type CreateInvoiceRequest struct {
	ClientID string     `json:"client_id"`
	PoolID   *string    `json:"pool_id,omitempty"`
	QuoteID  *string    `json:"quote_id,omitempty"`
	Items    []LineItem `json:"items,omitempty"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// UpdateInvoiceRequest is the payload for PATCH /api/invoices/{id}.
// Nil fields are left unchanged.
type UpdateInvoiceRequest struct {
	Items   *[]LineItem `json:"items,omitempty"`
	DueDate *time.Time  `json:"due_date,omitempty"`
	Notes   *string     `json:"notes,omitempty"`
}

// InvoiceResponse wraps an invoice with the non-fatal warnings an edit can
// raise, e.g. an item change that leaves the invoice overpaid.
type InvoiceResponse struct {
	Invoice  *Invoice `json:"invoice"`
	Warnings []string `json:"warnings,omitempty"`
}

// GenerateMonthlyRequest is the payload for POST /api/invoices/generate-monthly.
type GenerateMonthlyRequest struct {
	ServicePlanID string     `json:"service_plan_id"`
	PeriodStart   time.Time  `json:"period_start"`
	PeriodEnd     time.Time  `json:"period_end"`
	BillingDate   *time.Time `json:"billing_date,omitempty"`
}

// BatchResult reports the outcome of one auto-billing run. Failures are
// collected per plan; one plan never aborts its siblings.
type BatchResult struct {
	Generated []BatchGenerated `json:"generated"`
	Skipped   []BatchSkipped   `json:"skipped"`
	Errors    []BatchError     `json:"errors"`
}

type BatchGenerated struct {
	ServicePlanID string `json:"service_plan_id"`
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	TotalCents    int64  `json:"total_cents"`
	VisitCount    int    `json:"visit_count"`
}

type BatchSkipped struct {
	ServicePlanID string `json:"service_plan_id"`
	Reason        string `json:"reason"`
}

type BatchError struct {
	ServicePlanID string `json:"service_plan_id"`
	Error         string `json:"error"`
}
