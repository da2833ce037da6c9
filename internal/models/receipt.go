package models

import "time"

// Receipt is issued exactly once per completed payment, best-effort: a
// failed receipt never rolls back the payment it describes. PDFKey is the
// object key in the archive bucket, empty when upload was skipped.
type Receipt struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	PaymentID     string    `json:"payment_id"`
	ReceiptNumber string    `json:"receipt_number"`
	PDFKey        string    `json:"pdf_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MissingReceipt identifies a completed payment whose receipt generation
// failed and needs a follow-up.
type MissingReceipt struct {
	PaymentID   string    `json:"payment_id"`
	InvoiceID   string    `json:"invoice_id"`
	AmountCents int64     `json:"amount_cents"`
	ProcessedAt time.Time `json:"processed_at"`
}
