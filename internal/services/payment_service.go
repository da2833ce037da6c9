package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"poolops-backend/internal/cache"
	"poolops-backend/internal/metrics"
	"poolops-backend/internal/models"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"
)

// PaymentStore is the persistence surface for the payment ledger.
// CreateFromGateway decides webhook idempotency at the storage layer via
// the (org_id, provider_ref) unique index.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	CreateFromGateway(ctx context.Context, payment *models.Payment) (bool, error)
	GetByID(ctx context.Context, orgID, id string) (*models.Payment, error)
	GetByProviderRef(ctx context.Context, orgID, providerRef string) (*models.Payment, error)
	ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, orgID, id string, from, to models.PaymentStatus) error
	ListMissingReceipts(ctx context.Context, orgID string) ([]*models.MissingReceipt, error)
}

// ReceiptIssuer generates a receipt for a completed payment. Always
// invoked after the payment transaction committed, never inside it.
type ReceiptIssuer interface {
	IssueReceipt(ctx context.Context, payment *models.Payment, invoice *models.Invoice)
}

// PaymentService owns the two money-in entry points and reconciliation.
type PaymentService struct {
	payments PaymentStore
	invoices InvoiceStore
	receipts ReceiptIssuer

	providerName  string
	webhookSecret string
	gateway       *razorpay.Client
}

func NewPaymentService(payments PaymentStore, invoices InvoiceStore, receipts ReceiptIssuer, providerName, gatewayKeyID, gatewayKeySecret, webhookSecret string) *PaymentService {
	s := &PaymentService{
		payments:      payments,
		invoices:      invoices,
		receipts:      receipts,
		providerName:  providerName,
		webhookSecret: webhookSecret,
	}
	if gatewayKeyID != "" && gatewayKeySecret != "" {
		s.gateway = razorpay.NewClient(gatewayKeyID, gatewayKeySecret)
	}
	return s
}

// RecordManualPayment enters a payment taken outside the gateway (cash,
// bank transfer, cheque). Overpaying the outstanding balance is rejected;
// gateway events are exempt from that rule because the money has already
// moved.
func (s *PaymentService) RecordManualPayment(ctx context.Context, orgID string, req *models.RecordPaymentRequest) (*models.Payment, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method is required", models.ErrValidation)
	}

	invoice, err := s.invoices.GetByID(ctx, orgID, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return nil, fmt.Errorf("%w: cancelled invoices cannot receive payments", models.ErrInvalidState)
	}
	if req.AmountCents > invoice.BalanceCents() {
		return nil, fmt.Errorf("%w: outstanding balance is %d", models.ErrExceedsBalance, invoice.BalanceCents())
	}

	payment := &models.Payment{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		InvoiceID:   invoice.ID,
		Method:      req.Method,
		AmountCents: req.AmountCents,
		Currency:    invoice.Currency,
		Status:      models.PaymentStatusCompleted,
		ProcessedAt: time.Now().UTC(),
	}
	if req.Reference != "" {
		payment.Metadata = map[string]string{"reference": req.Reference}
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	metrics.PaymentsRecorded.WithLabelValues("manual").Inc()

	reconciled, err := s.Reconcile(ctx, orgID, invoice.ID)
	if err != nil {
		// The payment row is committed; reconciliation will be re-run by
		// the next money mutation on this invoice.
		log.Printf("[Payment] Reconcile after manual payment %s failed: %v", payment.ID, err)
		return payment, nil
	}

	go s.receipts.IssueReceipt(context.WithoutCancel(ctx), payment, reconciled)
	return payment, nil
}

// VerifyWebhookSignature checks the gateway's HMAC-SHA256 over the raw
// body. Verification is skipped when no secret is configured.
func (s *PaymentService) VerifyWebhookSignature(body []byte, signature string) bool {
	if s.webhookSecret == "" {
		return true
	}
	h := hmac.New(sha256.New, []byte(s.webhookSecret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ApplyGatewayEvent ingests one webhook delivery. Gateways deliver at
// least once, so the same event can arrive twice concurrently: the redis
// marker short-circuits the common retry, and the payments table's unique
// (org_id, provider_ref) index settles the race authoritatively. A
// duplicate is a successful no-op; the gateway must never see an error
// for it.
func (s *PaymentService) ApplyGatewayEvent(ctx context.Context, event *models.GatewayEvent) (*models.Payment, bool, error) {
	orgID := event.Data.Metadata.OrgID
	invoiceID := event.Data.Metadata.InvoiceID
	if orgID == "" || invoiceID == "" || event.Data.Reference == "" {
		return nil, false, fmt.Errorf("%w: event missing reference or metadata", models.ErrValidation)
	}
	if event.Data.AmountCents <= 0 {
		return nil, false, fmt.Errorf("%w: event amount must be positive", models.ErrValidation)
	}

	invoice, err := s.invoices.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, false, err
	}

	// Fast path: a marker in redis means we almost certainly processed
	// this reference already. Advisory only: redis being down or evicted
	// never changes the outcome, the unique index below does.
	if seen, _ := cache.MarkWebhookSeen(ctx, orgID, event.Data.Reference); seen {
		existing, err := s.payments.GetByProviderRef(ctx, orgID, event.Data.Reference)
		if err == nil {
			metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
			return existing, true, nil
		}
	}

	provider := s.providerName
	ref := event.Data.Reference
	payment := &models.Payment{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		InvoiceID:   invoice.ID,
		Method:      "gateway",
		Provider:    &provider,
		ProviderRef: &ref,
		AmountCents: event.Data.AmountCents,
		Currency:    invoice.Currency,
		Status:      models.PaymentStatusCompleted,
		ProcessedAt: time.Now().UTC(),
		Metadata:    map[string]string{"event": event.Event},
	}
	s.enrichFromGateway(payment)

	inserted, err := s.payments.CreateFromGateway(ctx, payment)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// Lost the race to a concurrent delivery of the same event.
		existing, err := s.payments.GetByProviderRef(ctx, orgID, event.Data.Reference)
		if err != nil {
			return nil, false, err
		}
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		return existing, true, nil
	}
	metrics.WebhookEvents.WithLabelValues("processed").Inc()
	metrics.PaymentsRecorded.WithLabelValues("gateway").Inc()

	reconciled, err := s.Reconcile(ctx, orgID, invoice.ID)
	if err != nil {
		log.Printf("[Webhook] Reconcile after gateway payment %s failed: %v", payment.ID, err)
		return payment, false, nil
	}

	go s.receipts.IssueReceipt(context.WithoutCancel(ctx), payment, reconciled)
	return payment, false, nil
}

// enrichFromGateway copies settlement details off the provider API into
// the payment metadata. Best-effort: a gateway outage never blocks the
// credit.
func (s *PaymentService) enrichFromGateway(payment *models.Payment) {
	if s.gateway == nil || payment.ProviderRef == nil {
		return
	}
	details, err := s.gateway.Payment.Fetch(*payment.ProviderRef, nil, nil)
	if err != nil {
		log.Printf("[Webhook] Failed to fetch payment %s from gateway: %v", *payment.ProviderRef, err)
		return
	}
	if method, ok := details["method"].(string); ok {
		payment.Metadata["gateway_method"] = method
	}
	if bank, ok := details["bank"].(string); ok && bank != "" {
		payment.Metadata["bank"] = bank
	}
	if vpa, ok := details["vpa"].(string); ok && vpa != "" {
		payment.Metadata["vpa"] = vpa
	}
}

// Reconcile recomputes the invoice's paid amount and status from its child
// records. It delegates to the store, which holds the invoice row lock for
// the whole recompute; no other code path writes paid_cents.
func (s *PaymentService) Reconcile(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	start := time.Now()
	invoice, err := s.invoices.Reconcile(ctx, orgID, invoiceID)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		cache.InvalidateSummary(ctx, orgID)
	}
	return invoice, err
}

func (s *PaymentService) Get(ctx context.Context, orgID, id string) (*models.Payment, error) {
	return s.payments.GetByID(ctx, orgID, id)
}

func (s *PaymentService) ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]*models.Payment, error) {
	return s.payments.ListByInvoice(ctx, orgID, invoiceID)
}

func (s *PaymentService) MissingReceipts(ctx context.Context, orgID string) ([]*models.MissingReceipt, error) {
	return s.payments.ListMissingReceipts(ctx, orgID)
}
