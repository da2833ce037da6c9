package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"poolops-backend/internal/models"
	"poolops-backend/internal/services"
)

const testWebhookSecret = "whsec_test"

// --- MOCKS ---

type stubInvoiceStore struct {
	mu      sync.Mutex
	invoice *models.Invoice
}

func (s *stubInvoiceStore) Create(ctx context.Context, invoice *models.Invoice) error { return nil }

func (s *stubInvoiceStore) GetByID(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoice == nil || s.invoice.ID != id || s.invoice.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *s.invoice
	return &cp, nil
}

func (s *stubInvoiceStore) List(ctx context.Context, orgID string) ([]*models.Invoice, error) {
	return nil, nil
}
func (s *stubInvoiceStore) Update(ctx context.Context, invoice *models.Invoice) error { return nil }
func (s *stubInvoiceStore) MarkSent(ctx context.Context, orgID, id string, issuedAt time.Time) error {
	return nil
}
func (s *stubInvoiceStore) MarkCancelled(ctx context.Context, orgID, id string) error { return nil }
func (s *stubInvoiceStore) Delete(ctx context.Context, orgID, id string) error        { return nil }
func (s *stubInvoiceStore) ExistsForQuote(ctx context.Context, orgID, quoteID string) (bool, error) {
	return false, nil
}
func (s *stubInvoiceStore) FindByPlanPeriod(ctx context.Context, orgID, planID string, periodStart time.Time) (*models.Invoice, error) {
	return nil, models.ErrNotFound
}

func (s *stubInvoiceStore) Reconcile(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	return s.GetByID(ctx, orgID, invoiceID)
}

func (s *stubInvoiceStore) Summary(ctx context.Context, orgID string) (*models.BillingSummary, error) {
	return &models.BillingSummary{}, nil
}

type stubPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment // keyed by provider ref
}

func (s *stubPaymentStore) Create(ctx context.Context, payment *models.Payment) error { return nil }

func (s *stubPaymentStore) CreateFromGateway(ctx context.Context, payment *models.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payments[*payment.ProviderRef]; exists {
		return false, nil
	}
	cp := *payment
	s.payments[*payment.ProviderRef] = &cp
	return true, nil
}

func (s *stubPaymentStore) GetByID(ctx context.Context, orgID, id string) (*models.Payment, error) {
	return nil, models.ErrNotFound
}

func (s *stubPaymentStore) GetByProviderRef(ctx context.Context, orgID, providerRef string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[providerRef]
	if !ok || p.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *stubPaymentStore) ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]*models.Payment, error) {
	return nil, nil
}
func (s *stubPaymentStore) UpdateStatus(ctx context.Context, orgID, id string, from, to models.PaymentStatus) error {
	return nil
}
func (s *stubPaymentStore) ListMissingReceipts(ctx context.Context, orgID string) ([]*models.MissingReceipt, error) {
	return nil, nil
}

type stubReceiptIssuer struct{}

func (stubReceiptIssuer) IssueReceipt(ctx context.Context, payment *models.Payment, invoice *models.Invoice) {
}

func newWebhookTestHandler() *WebhookHandler {
	now := time.Now().UTC()
	invoices := &stubInvoiceStore{invoice: &models.Invoice{
		ID:         "inv-1",
		OrgID:      "org-1",
		ClientID:   "client-1",
		Currency:   "USD",
		TotalCents: 10000,
		Status:     models.InvoiceStatusSent,
		IssuedAt:   &now,
	}}
	payments := &stubPaymentStore{payments: map[string]*models.Payment{}}
	svc := services.NewPaymentService(payments, invoices, stubReceiptIssuer{}, "razorpay", "", "", testWebhookSecret)
	return NewWebhookHandler(svc)
}

func sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(testWebhookSecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func postWebhook(t *testing.T, handler *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-gateway", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", signature)
	rec := httptest.NewRecorder()
	handler.HandlePaymentWebhook(rec, req)
	return rec
}

func capturedEvent(ref, invoiceID, orgID string, amount int64) []byte {
	body, _ := json.Marshal(models.GatewayEvent{
		Event: "payment.captured",
		Data: models.GatewayEventData{
			Reference:   ref,
			AmountCents: amount,
			Metadata:    models.GatewayEventMetadata{InvoiceID: invoiceID, OrgID: orgID},
		},
	})
	return body
}

func TestHandlePaymentWebhook(t *testing.T) {
	t.Run("rejects bad signature", func(t *testing.T) {
		handler := newWebhookTestHandler()
		body := capturedEvent("pay_1", "inv-1", "org-1", 10000)
		rec := postWebhook(t, handler, body, "deadbeef")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		handler := newWebhookTestHandler()
		body := []byte("{not json")
		rec := postWebhook(t, handler, body, sign(body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown invoice is a 404 so the gateway retries", func(t *testing.T) {
		handler := newWebhookTestHandler()
		body := capturedEvent("pay_1", "inv-ghost", "org-1", 10000)
		rec := postWebhook(t, handler, body, sign(body))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("event without org metadata is a 400", func(t *testing.T) {
		handler := newWebhookTestHandler()
		body := capturedEvent("pay_1", "inv-1", "", 10000)
		rec := postWebhook(t, handler, body, sign(body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("processes once then acknowledges redelivery", func(t *testing.T) {
		handler := newWebhookTestHandler()
		body := capturedEvent("pay_1", "inv-1", "org-1", 10000)

		rec := postWebhook(t, handler, body, sign(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("first delivery: expected 200, got %d (%s)", rec.Code, rec.Body.String())
		}
		var first map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if first["status"] != "ok" || first["payment_id"] == "" {
			t.Fatalf("unexpected body: %v", first)
		}

		rec = postWebhook(t, handler, body, sign(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("redelivery: expected 200, got %d", rec.Code)
		}
		var second map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if second["status"] != "already_processed" {
			t.Fatalf("redelivery must be acknowledged as duplicate, got %v", second)
		}
	})
}
