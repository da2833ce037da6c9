package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"poolops-backend/internal/models"
)

// --- MOCKS ---
// In-memory stores shared by the service tests in this package. They
// reproduce the same guarantees the SQL repositories give: org scoping,
// the provider_ref and plan/period unique indexes, the terminal-state
// update guard, one refund per payment, at-most-once credit note
// application and row-serialized reconciliation.

type memInvoiceStore struct {
	mu        sync.Mutex
	invoices  map[string]*models.Invoice
	payments  *memPaymentStore
	refunds   *memRefundStore
	credits   *memCreditNoteStore
	seq       int
	ErrCreate error
}

func newMemInvoiceStore() *memInvoiceStore {
	return &memInvoiceStore{invoices: map[string]*models.Invoice{}}
}

func (m *memInvoiceStore) Create(ctx context.Context, invoice *models.Invoice) error {
	if m.ErrCreate != nil {
		return m.ErrCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if invoice.Metadata.ServicePlanID != "" {
		for _, inv := range m.invoices {
			if inv.OrgID == invoice.OrgID &&
				inv.Metadata.ServicePlanID == invoice.Metadata.ServicePlanID &&
				inv.Metadata.PeriodStart == invoice.Metadata.PeriodStart {
				return fmt.Errorf("%w: an invoice already covers this plan and period", models.ErrDuplicatePeriod)
			}
		}
	}
	m.seq++
	invoice.InvoiceNumber = fmt.Sprintf("INV-%d-%04d", time.Now().UTC().Year(), m.seq)
	invoice.CreatedAt = time.Now().UTC()
	cp := *invoice
	m.invoices[invoice.ID] = &cp
	return nil
}

func (m *memInvoiceStore) GetByID(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceStore) List(ctx context.Context, orgID string) ([]*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Invoice
	for _, inv := range m.invoices {
		if inv.OrgID == orgID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memInvoiceStore) Update(ctx context.Context, invoice *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.invoices[invoice.ID]
	if !ok || stored.OrgID != invoice.OrgID {
		return models.ErrNotFound
	}
	if stored.Status == models.InvoiceStatusPaid || stored.Status == models.InvoiceStatusCancelled {
		return models.ErrInvalidState
	}
	stored.Items = invoice.Items
	stored.SubtotalCents = invoice.SubtotalCents
	stored.TaxCents = invoice.TaxCents
	stored.TotalCents = invoice.TotalCents
	stored.DueDate = invoice.DueDate
	stored.Notes = invoice.Notes
	return nil
}

func (m *memInvoiceStore) MarkSent(ctx context.Context, orgID, id string, issuedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.OrgID != orgID || inv.Status != models.InvoiceStatusDraft {
		return models.ErrInvalidState
	}
	inv.Status = models.InvoiceStatusSent
	inv.IssuedAt = &issuedAt
	return nil
}

func (m *memInvoiceStore) MarkCancelled(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.OrgID != orgID || inv.Status != models.InvoiceStatusDraft {
		return models.ErrInvalidState
	}
	inv.Status = models.InvoiceStatusCancelled
	return nil
}

func (m *memInvoiceStore) Delete(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.OrgID != orgID || inv.Status != models.InvoiceStatusDraft {
		return models.ErrInvalidState
	}
	delete(m.invoices, id)
	return nil
}

func (m *memInvoiceStore) ExistsForQuote(ctx context.Context, orgID, quoteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.OrgID == orgID && inv.QuoteID != nil && *inv.QuoteID == quoteID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memInvoiceStore) FindByPlanPeriod(ctx context.Context, orgID, planID string, periodStart time.Time) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := periodStart.UTC().Format("2006-01-02")
	for _, inv := range m.invoices {
		if inv.OrgID == orgID && inv.Metadata.ServicePlanID == planID && inv.Metadata.PeriodStart == start {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memInvoiceStore) Reconcile(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok || inv.OrgID != orgID {
		return nil, models.ErrNotFound
	}

	var paymentSum, refundSum, creditSum int64
	if m.payments != nil {
		for _, p := range m.payments.all() {
			if p.InvoiceID != invoiceID || p.OrgID != orgID {
				continue
			}
			paymentSum += p.AmountCents
			if m.refunds != nil {
				if r := m.refunds.byPayment(p.ID); r != nil {
					refundSum += r.AmountCents
				}
			}
		}
	}
	if m.credits != nil {
		for _, c := range m.credits.all() {
			if c.OrgID == orgID && c.AppliedAt != nil && c.InvoiceID != nil && *c.InvoiceID == invoiceID {
				creditSum += c.AmountCents
			}
		}
	}

	inv.ApplyReconciliation(paymentSum, refundSum, creditSum, time.Now().UTC())
	cp := *inv
	return &cp, nil
}

func (m *memInvoiceStore) Summary(ctx context.Context, orgID string) (*models.BillingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &models.BillingSummary{InvoiceCounts: map[string]int64{}}
	for _, inv := range m.invoices {
		if inv.OrgID != orgID {
			continue
		}
		summary.InvoiceCounts[string(inv.Status)]++
		summary.CollectedCents += inv.PaidCents
		if inv.Status == models.InvoiceStatusSent {
			summary.OutstandingCents += inv.TotalCents - inv.PaidCents
		}
	}
	return summary, nil
}

type memPaymentStore struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newMemPaymentStore() *memPaymentStore {
	return &memPaymentStore{payments: map[string]*models.Payment{}}
}

func (m *memPaymentStore) all() []*models.Payment {
	out := make([]*models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	return out
}

func (m *memPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *payment
	m.payments[payment.ID] = &cp
	return nil
}

func (m *memPaymentStore) CreateFromGateway(ctx context.Context, payment *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrgID == payment.OrgID && p.ProviderRef != nil && payment.ProviderRef != nil && *p.ProviderRef == *payment.ProviderRef {
			return false, nil
		}
	}
	cp := *payment
	m.payments[payment.ID] = &cp
	return true, nil
}

func (m *memPaymentStore) GetByID(ctx context.Context, orgID, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentStore) GetByProviderRef(ctx context.Context, orgID, providerRef string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrgID == orgID && p.ProviderRef != nil && *p.ProviderRef == providerRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memPaymentStore) ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Payment
	for _, p := range m.payments {
		if p.OrgID == orgID && p.InvoiceID == invoiceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentStore) UpdateStatus(ctx context.Context, orgID, id string, from, to models.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok || p.OrgID != orgID {
		return models.ErrNotFound
	}
	if p.Status != from {
		return models.ErrInvalidState
	}
	p.Status = to
	return nil
}

func (m *memPaymentStore) ListMissingReceipts(ctx context.Context, orgID string) ([]*models.MissingReceipt, error) {
	return nil, nil
}

type memRefundStore struct {
	mu      sync.Mutex
	refunds map[string]*models.Refund // keyed by payment id
}

func newMemRefundStore() *memRefundStore {
	return &memRefundStore{refunds: map[string]*models.Refund{}}
}

func (m *memRefundStore) byPayment(paymentID string) *models.Refund {
	return m.refunds[paymentID]
}

func (m *memRefundStore) Create(ctx context.Context, refund *models.Refund) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.refunds[refund.PaymentID]; exists {
		return models.ErrAlreadyRefunded
	}
	cp := *refund
	m.refunds[refund.PaymentID] = &cp
	return nil
}

func (m *memRefundStore) GetByPaymentID(ctx context.Context, orgID, paymentID string) (*models.Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[paymentID]
	if !ok || r.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type memCreditNoteStore struct {
	mu    sync.Mutex
	notes map[string]*models.CreditNote
}

func newMemCreditNoteStore() *memCreditNoteStore {
	return &memCreditNoteStore{notes: map[string]*models.CreditNote{}}
}

func (m *memCreditNoteStore) all() []*models.CreditNote {
	out := make([]*models.CreditNote, 0, len(m.notes))
	for _, n := range m.notes {
		out = append(out, n)
	}
	return out
}

func (m *memCreditNoteStore) Create(ctx context.Context, note *models.CreditNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *note
	m.notes[note.ID] = &cp
	return nil
}

func (m *memCreditNoteStore) GetByID(ctx context.Context, orgID, id string) (*models.CreditNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memCreditNoteStore) List(ctx context.Context, orgID string, unappliedOnly bool) ([]*models.CreditNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.CreditNote
	for _, n := range m.notes {
		if n.OrgID != orgID {
			continue
		}
		if unappliedOnly && n.AppliedAt != nil {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memCreditNoteStore) MarkApplied(ctx context.Context, orgID, id, invoiceID string, appliedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.OrgID != orgID {
		return models.ErrNotFound
	}
	if n.AppliedAt != nil {
		return models.ErrAlreadyApplied
	}
	n.InvoiceID = &invoiceID
	n.AppliedAt = &appliedAt
	return nil
}

type memQuoteStore struct {
	mu     sync.Mutex
	quotes map[string]*models.Quote
}

func newMemQuoteStore() *memQuoteStore {
	return &memQuoteStore{quotes: map[string]*models.Quote{}}
}

func (m *memQuoteStore) Create(ctx context.Context, quote *models.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *quote
	m.quotes[quote.ID] = &cp
	return nil
}

func (m *memQuoteStore) GetByID(ctx context.Context, orgID, id string) (*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[id]
	if !ok || q.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *memQuoteStore) List(ctx context.Context, orgID string) ([]*models.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Quote
	for _, q := range m.quotes {
		if q.OrgID == orgID {
			cp := *q
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memQuoteStore) Update(ctx context.Context, quote *models.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotes[quote.ID]; !ok {
		return models.ErrNotFound
	}
	cp := *quote
	m.quotes[quote.ID] = &cp
	return nil
}

type memIssueStore struct {
	mu       sync.Mutex
	statuses map[string]string
}

func newMemIssueStore() *memIssueStore {
	return &memIssueStore{statuses: map[string]string{}}
}

func (m *memIssueStore) SetStatus(ctx context.Context, orgID, issueID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[issueID] = status
	return nil
}

func (m *memIssueStore) status(issueID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[issueID]
}

// memDirectoryStore answers client and pool ownership checks.
type memDirectoryStore struct {
	clients map[string]bool
	pools   map[string]bool
}

func (m *memDirectoryStore) Exists(ctx context.Context, orgID, clientID string) (bool, error) {
	return m.clients[clientID], nil
}

func (m *memDirectoryStore) PoolExists(ctx context.Context, orgID, poolID string) (bool, error) {
	return m.pools[poolID], nil
}

type memPlanStore struct {
	plans map[string]*models.ServicePlan
}

func (m *memPlanStore) GetByID(ctx context.Context, orgID, id string) (*models.ServicePlan, error) {
	p, ok := m.plans[id]
	if !ok || p.OrgID != orgID {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanStore) ListActive(ctx context.Context) ([]*models.ServicePlan, error) {
	var out []*models.ServicePlan
	for _, p := range m.plans {
		if p.Status == models.ServicePlanStatusActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memVisitStore struct {
	visits []*models.Visit
}

func (m *memVisitStore) ListCompletedInPeriod(ctx context.Context, orgID, planID string, periodStart, periodEnd time.Time) ([]*models.Visit, error) {
	var out []*models.Visit
	for _, v := range m.visits {
		if v.OrgID != orgID || v.ServicePlanID != planID || v.CompletedAt == nil {
			continue
		}
		at := v.CompletedAt.UTC()
		if (at.Equal(periodStart) || at.After(periodStart)) && at.Before(periodEnd) {
			out = append(out, v)
		}
	}
	return out, nil
}

// nopReceiptIssuer satisfies ReceiptIssuer without touching storage.
// Receipt generation runs on its own goroutine in the service, so the
// tests never assert on it.
type nopReceiptIssuer struct{}

func (nopReceiptIssuer) IssueReceipt(ctx context.Context, payment *models.Payment, invoice *models.Invoice) {
}

// billingFixture wires the shared stores together the way main does,
// with reconciliation reading payments, refunds and credit notes.
type billingFixture struct {
	invoices *memInvoiceStore
	payments *memPaymentStore
	refunds  *memRefundStore
	credits  *memCreditNoteStore

	paymentSvc    *PaymentService
	adjustmentSvc *AdjustmentService
}

func newBillingFixture() *billingFixture {
	invoices := newMemInvoiceStore()
	payments := newMemPaymentStore()
	refunds := newMemRefundStore()
	credits := newMemCreditNoteStore()
	invoices.payments = payments
	invoices.refunds = refunds
	invoices.credits = credits

	paymentSvc := NewPaymentService(payments, invoices, nopReceiptIssuer{}, "razorpay", "", "", "test-webhook-secret")
	adjustmentSvc := NewAdjustmentService(credits, refunds, payments, invoices, paymentSvc)

	return &billingFixture{
		invoices:      invoices,
		payments:      payments,
		refunds:       refunds,
		credits:       credits,
		paymentSvc:    paymentSvc,
		adjustmentSvc: adjustmentSvc,
	}
}

// seedInvoice inserts a sent invoice ready to receive payments.
func (f *billingFixture) seedInvoice(id, orgID string, totalCents int64) *models.Invoice {
	now := time.Now().UTC()
	inv := &models.Invoice{
		ID:         id,
		OrgID:      orgID,
		ClientID:   "client-1",
		Currency:   "USD",
		Items:      []models.LineItem{{Label: "Service", Qty: 1, UnitPriceCents: totalCents}},
		TotalCents: totalCents,
		Status:     models.InvoiceStatusSent,
		IssuedAt:   &now,
	}
	f.invoices.mu.Lock()
	defer f.invoices.mu.Unlock()
	f.invoices.invoices[id] = inv
	return inv
}
