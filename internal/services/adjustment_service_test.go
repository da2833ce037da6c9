package services

import (
	"context"
	"errors"
	"testing"

	"poolops-backend/internal/models"
)

func TestCreateCreditNote(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects zero amount", func(t *testing.T) {
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		_, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-1", &models.CreateCreditNoteRequest{
			Items: []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 0}},
		})
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects unknown invoice", func(t *testing.T) {
		f := newBillingFixture()
		_, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-missing", &models.CreateCreditNoteRequest{
			Items: []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 2000}},
		})
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("stored unapplied note leaves the balance alone", func(t *testing.T) {
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		note, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-1", &models.CreateCreditNoteRequest{
			Items:  []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 2000}},
			Reason: "late visit",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if note.AppliedAt != nil {
			t.Error("note must stay unapplied")
		}
		if note.AmountCents != 2000 {
			t.Errorf("expected amount 2000, got %d", note.AmountCents)
		}
		inv, _ := f.invoices.GetByID(ctx, "org-1", "inv-1")
		if inv.PaidCents != 0 {
			t.Errorf("unapplied note must not move paid_cents, got %d", inv.PaidCents)
		}
	})

	t.Run("apply_now reconciles immediately", func(t *testing.T) {
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		note, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-1", &models.CreateCreditNoteRequest{
			Items:    []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 10000}},
			ApplyNow: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if note.AppliedAt == nil {
			t.Fatal("apply_now note must carry applied_at")
		}
		inv, _ := f.invoices.GetByID(ctx, "org-1", "inv-1")
		if inv.PaidCents != 10000 || inv.Status != models.InvoiceStatusPaid {
			t.Fatalf("credit covering the total must settle the invoice: paid=%d status=%s", inv.PaidCents, inv.Status)
		}
	})
}

func TestApplyCreditNote(t *testing.T) {
	ctx := context.Background()

	t.Run("applies stored note and returns new balance", func(t *testing.T) {
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		note, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-1", &models.CreateCreditNoteRequest{
			Items: []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 4000}},
		})
		if err != nil {
			t.Fatalf("create note: %v", err)
		}

		resp, err := f.adjustmentSvc.ApplyCreditNote(ctx, "org-1", note.ID, nil)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !resp.Success || resp.NewBalanceCents != 6000 {
			t.Fatalf("expected balance 6000, got success=%v balance=%d", resp.Success, resp.NewBalanceCents)
		}

		// Application is at most once.
		_, err = f.adjustmentSvc.ApplyCreditNote(ctx, "org-1", note.ID, nil)
		if !errors.Is(err, models.ErrAlreadyApplied) {
			t.Fatalf("expected ErrAlreadyApplied on second apply, got %v", err)
		}
		inv, _ := f.invoices.GetByID(ctx, "org-1", "inv-1")
		if inv.PaidCents != 4000 {
			t.Errorf("double apply moved paid_cents to %d", inv.PaidCents)
		}
	})

	t.Run("request may redirect the note to another invoice", func(t *testing.T) {
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		f.seedInvoice("inv-2", "org-1", 5000)
		note, err := f.adjustmentSvc.CreateCreditNote(ctx, "org-1", "inv-1", &models.CreateCreditNoteRequest{
			Items: []models.LineItem{{Label: "Goodwill", Qty: 1, UnitPriceCents: 3000}},
		})
		if err != nil {
			t.Fatalf("create note: %v", err)
		}

		target := "inv-2"
		resp, err := f.adjustmentSvc.ApplyCreditNote(ctx, "org-1", note.ID, &target)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if resp.NewBalanceCents != 2000 {
			t.Errorf("expected balance 2000 on inv-2, got %d", resp.NewBalanceCents)
		}
		if inv1, _ := f.invoices.GetByID(ctx, "org-1", "inv-1"); inv1.PaidCents != 0 {
			t.Errorf("original invoice must be untouched, paid=%d", inv1.PaidCents)
		}
	})

	t.Run("unknown note", func(t *testing.T) {
		f := newBillingFixture()
		_, err := f.adjustmentSvc.ApplyCreditNote(ctx, "org-1", "note-missing", nil)
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRefundPayment(t *testing.T) {
	ctx := context.Background()

	seedPaid := func(t *testing.T) (*billingFixture, *models.Payment) {
		t.Helper()
		f := newBillingFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		payment, err := f.paymentSvc.RecordManualPayment(ctx, "org-1", &models.RecordPaymentRequest{
			InvoiceID: "inv-1", Method: "cash", AmountCents: 10000,
		})
		if err != nil {
			t.Fatalf("seed payment: %v", err)
		}
		return f, payment
	}

	t.Run("full refund by default", func(t *testing.T) {
		f, payment := seedPaid(t)
		refund, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", payment.ID, &models.RefundPaymentRequest{Reason: "duplicate charge"})
		if err != nil {
			t.Fatalf("refund: %v", err)
		}
		if refund.AmountCents != 10000 {
			t.Errorf("nil amount must refund the full payment, got %d", refund.AmountCents)
		}
		if p, _ := f.payments.GetByID(ctx, "org-1", payment.ID); p.Status != models.PaymentStatusRefunded {
			t.Errorf("expected refunded payment, got %s", p.Status)
		}
		inv, _ := f.invoices.GetByID(ctx, "org-1", "inv-1")
		if inv.PaidCents != 0 || inv.Status != models.InvoiceStatusSent {
			t.Errorf("full refund must zero the balance and reopen: paid=%d status=%s", inv.PaidCents, inv.Status)
		}
	})

	t.Run("rejects amount above the payment", func(t *testing.T) {
		f, payment := seedPaid(t)
		amount := int64(10001)
		_, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", payment.ID, &models.RefundPaymentRequest{AmountCents: &amount})
		if !errors.Is(err, models.ErrExceedsPaymentAmount) {
			t.Fatalf("expected ErrExceedsPaymentAmount, got %v", err)
		}
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		f, payment := seedPaid(t)
		amount := int64(0)
		_, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", payment.ID, &models.RefundPaymentRequest{AmountCents: &amount})
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("second refund of the same payment is rejected", func(t *testing.T) {
		f, payment := seedPaid(t)
		if _, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", payment.ID, &models.RefundPaymentRequest{}); err != nil {
			t.Fatalf("first refund: %v", err)
		}
		_, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", payment.ID, &models.RefundPaymentRequest{})
		if !errors.Is(err, models.ErrAlreadyRefunded) {
			t.Fatalf("expected ErrAlreadyRefunded, got %v", err)
		}
	})

	t.Run("unknown payment", func(t *testing.T) {
		f := newBillingFixture()
		_, err := f.adjustmentSvc.RefundPayment(ctx, "org-1", "pay-missing", &models.RefundPaymentRequest{})
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
