package models

import "time"

type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusApproved QuoteStatus = "approved"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// Quote is a priced proposal for work on a pool. Totals are always the
// recomputation of Items at last write, never edited independently.
type Quote struct {
	ID              string      `json:"id"`
	OrgID           string      `json:"org_id"`
	PoolID          string      `json:"pool_id"`
	ClientID        string      `json:"client_id"`
	IssueID         *string     `json:"issue_id,omitempty"`
	Currency        string      `json:"currency"`
	Items           []LineItem  `json:"items"`
	SubtotalCents   int64       `json:"subtotal_cents"`
	TaxCents        int64       `json:"tax_cents"`
	TotalCents      int64       `json:"total_cents"`
	Status          QuoteStatus `json:"status"`
	ApprovedAt      *time.Time  `json:"approved_at,omitempty"`
	RejectedAt      *time.Time  `json:"rejected_at,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// CreateQuoteRequest is the payload for POST /api/quotes
type CreateQuoteRequest struct {
	PoolID   string     `json:"pool_id"`
	ClientID string     `json:"client_id"`
	IssueID  *string    `json:"issue_id,omitempty"`
	Items    []LineItem `json:"items"`
	Notes    string     `json:"notes,omitempty"`
}

// UpdateQuoteRequest is the payload for PATCH /api/quotes/{id}
type UpdateQuoteRequest struct {
	Items *[]LineItem `json:"items,omitempty"`
	Notes *string     `json:"notes,omitempty"`
}

// RejectQuoteRequest is the payload for POST /api/quotes/{id}/reject
type RejectQuoteRequest struct {
	Reason string `json:"reason"`
}
