package services

import (
	"context"
	"fmt"
	"time"

	"poolops-backend/internal/models"
	"poolops-backend/internal/money"

	"github.com/google/uuid"
)

// CreditNoteStore is the persistence surface for credit notes. MarkApplied
// is at-most-once: a second application fails with ErrAlreadyApplied.
type CreditNoteStore interface {
	Create(ctx context.Context, note *models.CreditNote) error
	GetByID(ctx context.Context, orgID, id string) (*models.CreditNote, error)
	List(ctx context.Context, orgID string, unappliedOnly bool) ([]*models.CreditNote, error)
	MarkApplied(ctx context.Context, orgID, id, invoiceID string, appliedAt time.Time) error
}

// RefundStore persists refunds; the payment_id unique index allows at most
// one refund per payment.
type RefundStore interface {
	Create(ctx context.Context, refund *models.Refund) error
	GetByPaymentID(ctx context.Context, orgID, paymentID string) (*models.Refund, error)
}

// AdjustmentService posts negative adjustments: credit notes against an
// invoice, refunds against a specific payment. Every adjustment funnels
// through reconciliation so the invoice balance is re-derived, never
// hand-adjusted.
type AdjustmentService struct {
	creditNotes CreditNoteStore
	refunds     RefundStore
	payments    PaymentStore
	invoices    InvoiceStore
	reconciler  *PaymentService
}

func NewAdjustmentService(creditNotes CreditNoteStore, refunds RefundStore, payments PaymentStore, invoices InvoiceStore, reconciler *PaymentService) *AdjustmentService {
	return &AdjustmentService{
		creditNotes: creditNotes,
		refunds:     refunds,
		payments:    payments,
		invoices:    invoices,
		reconciler:  reconciler,
	}
}

// CreateCreditNote prices the credit from its items; the amount is always
// positive and represents a reduction. With applyNow it is applied to the
// invoice immediately, otherwise it is stored unapplied for a later
// ApplyCreditNote call.
func (s *AdjustmentService) CreateCreditNote(ctx context.Context, orgID, invoiceID string, req *models.CreateCreditNoteRequest) (*models.CreditNote, error) {
	invoice, err := s.invoices.GetByID(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}

	totals, err := money.ComputeTotals(req.Items)
	if err != nil {
		return nil, err
	}
	amount := totals.TotalCents
	if amount < 0 {
		amount = -amount
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: credit note amount must be positive", models.ErrValidation)
	}

	note := &models.CreditNote{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		ClientID:    invoice.ClientID,
		InvoiceID:   &invoice.ID,
		Reason:      req.Reason,
		Items:       req.Items,
		AmountCents: amount,
	}
	if req.ApplyNow {
		now := time.Now().UTC()
		note.AppliedAt = &now
	}

	if err := s.creditNotes.Create(ctx, note); err != nil {
		return nil, err
	}

	if req.ApplyNow {
		if _, err := s.reconciler.Reconcile(ctx, orgID, invoice.ID); err != nil {
			return nil, err
		}
	}
	return note, nil
}

// ApplyCreditNote applies a stored credit note to its invoice (or the one
// named in the request) and returns the re-derived balance.
func (s *AdjustmentService) ApplyCreditNote(ctx context.Context, orgID, id string, invoiceID *string) (*models.ApplyCreditNoteResponse, error) {
	note, err := s.creditNotes.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if note.AppliedAt != nil {
		return nil, models.ErrAlreadyApplied
	}

	target := note.InvoiceID
	if invoiceID != nil {
		target = invoiceID
	}
	if target == nil {
		return nil, fmt.Errorf("%w: credit note has no target invoice", models.ErrValidation)
	}

	invoice, err := s.invoices.GetByID(ctx, orgID, *target)
	if err != nil {
		return nil, err
	}

	if err := s.creditNotes.MarkApplied(ctx, orgID, note.ID, invoice.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	reconciled, err := s.reconciler.Reconcile(ctx, orgID, invoice.ID)
	if err != nil {
		return nil, err
	}
	return &models.ApplyCreditNoteResponse{
		Success:         true,
		NewBalanceCents: reconciled.BalanceCents(),
	}, nil
}

func (s *AdjustmentService) ListCreditNotes(ctx context.Context, orgID string, unappliedOnly bool) ([]*models.CreditNote, error) {
	return s.creditNotes.List(ctx, orgID, unappliedOnly)
}

// RefundPayment reverses part or all of a completed payment. The invoice
// balance rises back by the refunded amount; a refund that reopens a fully
// paid invoice intentionally drops it out of paid status.
func (s *AdjustmentService) RefundPayment(ctx context.Context, orgID, paymentID string, req *models.RefundPaymentRequest) (*models.Refund, error) {
	payment, err := s.payments.GetByID(ctx, orgID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: payment is %s", models.ErrAlreadyRefunded, payment.Status)
	}

	amount := payment.AmountCents
	if req.AmountCents != nil {
		amount = *req.AmountCents
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", models.ErrValidation)
	}
	if amount > payment.AmountCents {
		return nil, fmt.Errorf("%w: payment amount is %d", models.ErrExceedsPaymentAmount, payment.AmountCents)
	}

	refund := &models.Refund{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		PaymentID:   payment.ID,
		AmountCents: amount,
		Reason:      req.Reason,
		RefundedAt:  time.Now().UTC(),
	}
	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, err
	}

	to := models.PaymentStatusPartiallyRefunded
	if amount == payment.AmountCents {
		to = models.PaymentStatusRefunded
	}
	if err := s.payments.UpdateStatus(ctx, orgID, payment.ID, models.PaymentStatusCompleted, to); err != nil {
		return nil, err
	}

	if _, err := s.reconciler.Reconcile(ctx, orgID, payment.InvoiceID); err != nil {
		return nil, err
	}
	return refund, nil
}
