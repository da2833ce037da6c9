package models

import "time"

type PaymentStatus string

const (
	PaymentStatusCompleted         PaymentStatus = "completed"
	PaymentStatusRefunded          PaymentStatus = "refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Payment records one real-world money movement against an invoice. Rows
// are immutable except for refund-driven status transitions. ProviderRef
// is the gateway's idempotency key: unique per org when present, enforced
// by the database so concurrent webhook deliveries cannot double-credit.
type Payment struct {
	ID          string            `json:"id"`
	OrgID       string            `json:"org_id"`
	InvoiceID   string            `json:"invoice_id"`
	Method      string            `json:"method"`
	Provider    *string           `json:"provider,omitempty"`
	ProviderRef *string           `json:"provider_ref,omitempty"`
	AmountCents int64             `json:"amount_cents"`
	Currency    string            `json:"currency"`
	Status      PaymentStatus     `json:"status"`
	ProcessedAt time.Time         `json:"processed_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// RecordPaymentRequest is the payload for POST /api/payments.
type RecordPaymentRequest struct {
	InvoiceID   string `json:"invoice_id"`
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
}

// RefundPaymentRequest is the payload for POST /api/payments/{id}/refund.
// A nil AmountCents refunds the full payment.
type RefundPaymentRequest struct {
	AmountCents *int64 `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// GatewayEvent is the parsed webhook body from the payment gateway.
type GatewayEvent struct {
	Event string           `json:"event"`
	Data  GatewayEventData `json:"data"`
}

type GatewayEventData struct {
	Reference   string               `json:"reference"`
	AmountCents int64                `json:"amount"`
	Currency    string               `json:"currency,omitempty"`
	Metadata    GatewayEventMetadata `json:"metadata"`
}

type GatewayEventMetadata struct {
	InvoiceID string `json:"invoiceId"`
	OrgID     string `json:"orgId"`
}
