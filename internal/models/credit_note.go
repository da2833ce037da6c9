package models

import "time"

// CreditNote is a positive amount representing a reduction of an invoice's
// effective balance. It stays unapplied (AppliedAt nil) until explicitly
// applied; application happens at most once.
type CreditNote struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"org_id"`
	ClientID    string     `json:"client_id"`
	InvoiceID   *string    `json:"invoice_id,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	Items       []LineItem `json:"items"`
	AmountCents int64      `json:"amount_cents"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateCreditNoteRequest is the payload for POST /api/invoices/{id}/credit-notes.
type CreateCreditNoteRequest struct {
	Items    []LineItem `json:"items"`
	Reason   string     `json:"reason,omitempty"`
	ApplyNow bool       `json:"apply_now,omitempty"`
}

// ApplyCreditNoteRequest is the payload for POST /api/credit-notes/{id}/apply.
// InvoiceID may be omitted when the note was created against an invoice.
type ApplyCreditNoteRequest struct {
	InvoiceID *string `json:"invoice_id,omitempty"`
}

// ApplyCreditNoteResponse reports the balance after application.
type ApplyCreditNoteResponse struct {
	Success         bool  `json:"success"`
	NewBalanceCents int64 `json:"new_balance_cents"`
}
