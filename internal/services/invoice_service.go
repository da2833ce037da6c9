package services

import (
	"context"
	"fmt"
	"time"

	"poolops-backend/internal/models"
	"poolops-backend/internal/money"

	"github.com/google/uuid"
)

// InvoiceStore is the persistence surface for invoice lifecycle and
// reconciliation. Reconcile runs its own row-locked transaction and is the
// only writer of paid_cents.
type InvoiceStore interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, orgID, id string) (*models.Invoice, error)
	List(ctx context.Context, orgID string) ([]*models.Invoice, error)
	Update(ctx context.Context, invoice *models.Invoice) error
	MarkSent(ctx context.Context, orgID, id string, issuedAt time.Time) error
	MarkCancelled(ctx context.Context, orgID, id string) error
	Delete(ctx context.Context, orgID, id string) error
	ExistsForQuote(ctx context.Context, orgID, quoteID string) (bool, error)
	FindByPlanPeriod(ctx context.Context, orgID, planID string, periodStart time.Time) (*models.Invoice, error)
	Reconcile(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error)
	Summary(ctx context.Context, orgID string) (*models.BillingSummary, error)
}

// ClientStore proves a client belongs to the invoicing org.
type ClientStore interface {
	Exists(ctx context.Context, orgID, clientID string) (bool, error)
}

type InvoiceService struct {
	invoices InvoiceStore
	quotes   QuoteStore
	clients  ClientStore
	currency string
}

func NewInvoiceService(invoices InvoiceStore, quotes QuoteStore, clients ClientStore, currency string) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		quotes:   quotes,
		clients:  clients,
		currency: currency,
	}
}

// Create builds a draft invoice either ad hoc from items or from an
// approved quote. Numbering happens inside the store's insert transaction.
func (s *InvoiceService) Create(ctx context.Context, orgID string, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if req.QuoteID != nil {
		return s.createFromQuote(ctx, orgID, *req.QuoteID, req)
	}
	return s.createFromItems(ctx, orgID, req)
}

func (s *InvoiceService) createFromItems(ctx context.Context, orgID string, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	if req.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", models.ErrValidation)
	}

	ok, err := s.clients.Exists(ctx, orgID, req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: client %s", models.ErrNotFound, req.ClientID)
	}

	totals, err := money.ComputeTotals(req.Items)
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		ClientID:      req.ClientID,
		PoolID:        req.PoolID,
		Currency:      s.currency,
		Items:         req.Items,
		SubtotalCents: totals.SubtotalCents,
		TaxCents:      totals.TaxCents,
		TotalCents:    totals.TotalCents,
		PaidCents:     0,
		Status:        models.InvoiceStatusDraft,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// createFromQuote copies the approved quote's items and totals verbatim,
// preserving exactly what the client agreed to; totals are deliberately
// not recomputed. A quote seeds at most one invoice.
func (s *InvoiceService) createFromQuote(ctx context.Context, orgID, quoteID string, req *models.CreateInvoiceRequest) (*models.Invoice, error) {
	quote, err := s.quotes.GetByID(ctx, orgID, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusApproved {
		return nil, fmt.Errorf("%w: quote is %s, only approved quotes can be invoiced", models.ErrInvalidState, quote.Status)
	}

	exists, err := s.invoices.ExistsForQuote(ctx, orgID, quoteID)
	if err != nil {
		return nil, fmt.Errorf("failed to check quote invoices: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: quote %s already has an invoice", models.ErrInvalidState, quoteID)
	}

	poolID := quote.PoolID
	invoice := &models.Invoice{
		ID:            uuid.New().String(),
		OrgID:         orgID,
		ClientID:      quote.ClientID,
		PoolID:        &poolID,
		QuoteID:       &quote.ID,
		Currency:      quote.Currency,
		Items:         quote.Items,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		PaidCents:     0,
		Status:        models.InvoiceStatusDraft,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}

	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// Update edits a draft or sent invoice. Item changes recompute totals;
// paid_cents belongs to reconciliation and is never touched here, but an
// edit that shrinks the total below what was already paid surfaces an
// OverpaidAfterEdit warning for the caller to act on.
func (s *InvoiceService) Update(ctx context.Context, orgID, id string, req *models.UpdateInvoiceRequest) (*models.InvoiceResponse, error) {
	invoice, err := s.invoices.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.InvoiceStatusPaid || invoice.Status == models.InvoiceStatusCancelled {
		return nil, fmt.Errorf("%w: %s invoices cannot be edited", models.ErrInvalidState, invoice.Status)
	}

	if req.Items != nil {
		totals, err := money.ComputeTotals(*req.Items)
		if err != nil {
			return nil, err
		}
		invoice.Items = *req.Items
		invoice.SubtotalCents = totals.SubtotalCents
		invoice.TaxCents = totals.TaxCents
		invoice.TotalCents = totals.TotalCents
	}
	if req.DueDate != nil {
		invoice.DueDate = req.DueDate
	}
	if req.Notes != nil {
		invoice.Notes = *req.Notes
	}

	if err := s.invoices.Update(ctx, invoice); err != nil {
		return nil, err
	}

	resp := &models.InvoiceResponse{Invoice: invoice}
	if invoice.PaidCents > invoice.TotalCents {
		resp.Warnings = append(resp.Warnings, "OverpaidAfterEdit: paid amount exceeds the new total; issue a refund or credit note")
	}
	return resp, nil
}

// Send transitions draft -> sent and stamps issued_at.
func (s *InvoiceService) Send(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	if err := s.invoices.MarkSent(ctx, orgID, id, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.invoices.GetByID(ctx, orgID, id)
}

// Cancel transitions draft -> cancelled; there is no way out of cancelled.
func (s *InvoiceService) Cancel(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	if _, err := s.invoices.GetByID(ctx, orgID, id); err != nil {
		return nil, err
	}
	if err := s.invoices.MarkCancelled(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.invoices.GetByID(ctx, orgID, id)
}

// Delete removes a draft invoice; any other state is rejected.
func (s *InvoiceService) Delete(ctx context.Context, orgID, id string) error {
	if _, err := s.invoices.GetByID(ctx, orgID, id); err != nil {
		return err
	}
	return s.invoices.Delete(ctx, orgID, id)
}

func (s *InvoiceService) Get(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	return s.invoices.GetByID(ctx, orgID, id)
}

func (s *InvoiceService) List(ctx context.Context, orgID string) ([]*models.Invoice, error) {
	return s.invoices.List(ctx, orgID)
}

func (s *InvoiceService) Summary(ctx context.Context, orgID string) (*models.BillingSummary, error) {
	return s.invoices.Summary(ctx, orgID)
}
