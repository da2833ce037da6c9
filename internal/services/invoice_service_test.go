package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"poolops-backend/internal/models"
)

func newInvoiceFixture() (*InvoiceService, *billingFixture, *memQuoteStore) {
	f := newBillingFixture()
	quotes := newMemQuoteStore()
	directory := &memDirectoryStore{
		clients: map[string]bool{"client-1": true},
		pools:   map[string]bool{"pool-1": true},
	}
	return NewInvoiceService(f.invoices, quotes, directory, "USD"), f, quotes
}

func TestCreateInvoiceFromItems(t *testing.T) {
	ctx := context.Background()
	items := []models.LineItem{
		{Label: "Monthly service", Qty: 1, UnitPriceCents: 15000, TaxPct: 8.25},
	}

	t.Run("rejects missing client", func(t *testing.T) {
		svc, _, _ := newInvoiceFixture()
		_, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{Items: items})
		if !errors.Is(err, models.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects client from another org", func(t *testing.T) {
		svc, _, _ := newInvoiceFixture()
		_, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{ClientID: "client-other", Items: items})
		if !errors.Is(err, models.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("creates a numbered draft", func(t *testing.T) {
		svc, _, _ := newInvoiceFixture()
		invoice, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{ClientID: "client-1", Items: items})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if invoice.Status != models.InvoiceStatusDraft {
			t.Errorf("expected draft, got %s", invoice.Status)
		}
		if !strings.HasPrefix(invoice.InvoiceNumber, "INV-") {
			t.Errorf("expected assigned invoice number, got %q", invoice.InvoiceNumber)
		}
		// 15000 * 8.25% = 1237.5, rounded half up to 1238.
		if invoice.SubtotalCents != 15000 || invoice.TaxCents != 1238 || invoice.TotalCents != 16238 {
			t.Errorf("totals: subtotal=%d tax=%d total=%d", invoice.SubtotalCents, invoice.TaxCents, invoice.TotalCents)
		}
		if invoice.PaidCents != 0 {
			t.Errorf("new invoice must start unpaid, got %d", invoice.PaidCents)
		}
	})
}

func TestCreateInvoiceFromQuote(t *testing.T) {
	ctx := context.Background()

	seedQuote := func(quotes *memQuoteStore, status models.QuoteStatus) *models.Quote {
		q := &models.Quote{
			ID:            "quote-1",
			OrgID:         "org-1",
			PoolID:        "pool-1",
			ClientID:      "client-1",
			Currency:      "USD",
			Items:         []models.LineItem{{Label: "Pump replacement", Qty: 1, UnitPriceCents: 45000, TaxPct: 10}},
			SubtotalCents: 45000,
			TaxCents:      4500,
			TotalCents:    49500,
			Status:        status,
		}
		quotes.Create(context.Background(), q)
		return q
	}

	t.Run("rejects unapproved quote", func(t *testing.T) {
		svc, _, quotes := newInvoiceFixture()
		q := seedQuote(quotes, models.QuoteStatusPending)
		_, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{QuoteID: &q.ID})
		if !errors.Is(err, models.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("copies quote totals verbatim and blocks a second invoice", func(t *testing.T) {
		svc, _, quotes := newInvoiceFixture()
		q := seedQuote(quotes, models.QuoteStatusApproved)

		invoice, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{QuoteID: &q.ID})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if invoice.TotalCents != 49500 || invoice.SubtotalCents != 45000 || invoice.TaxCents != 4500 {
			t.Errorf("totals must match the quote: subtotal=%d tax=%d total=%d",
				invoice.SubtotalCents, invoice.TaxCents, invoice.TotalCents)
		}
		if invoice.QuoteID == nil || *invoice.QuoteID != q.ID {
			t.Error("invoice must link back to the quote")
		}
		if invoice.ClientID != "client-1" {
			t.Errorf("client must come from the quote, got %s", invoice.ClientID)
		}

		_, err = svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{QuoteID: &q.ID})
		if !errors.Is(err, models.ErrInvalidState) {
			t.Fatalf("a quote seeds at most one invoice, got %v", err)
		}
	})
}

func TestUpdateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("recomputes totals from new items", func(t *testing.T) {
		svc, f, _ := newInvoiceFixture()
		f.seedInvoice("inv-1", "org-1", 10000)

		newItems := []models.LineItem{{Label: "Adjusted service", Qty: 2, UnitPriceCents: 6000}}
		resp, err := svc.Update(ctx, "org-1", "inv-1", &models.UpdateInvoiceRequest{Items: &newItems})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if resp.Invoice.TotalCents != 12000 {
			t.Errorf("expected total 12000, got %d", resp.Invoice.TotalCents)
		}
		if len(resp.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", resp.Warnings)
		}
	})

	t.Run("warns when the edit leaves the invoice overpaid", func(t *testing.T) {
		svc, f, _ := newInvoiceFixture()
		f.seedInvoice("inv-1", "org-1", 10000)
		if _, err := f.paymentSvc.RecordManualPayment(ctx, "org-1", &models.RecordPaymentRequest{
			InvoiceID: "inv-1", Method: "cash", AmountCents: 10000,
		}); err != nil {
			t.Fatalf("seed payment: %v", err)
		}
		// Re-seed to sent: Update refuses paid invoices, the overpaid
		// warning applies to sent ones that shrank below payments.
		f.invoices.invoices["inv-1"].Status = models.InvoiceStatusSent

		newItems := []models.LineItem{{Label: "Smaller job", Qty: 1, UnitPriceCents: 6000}}
		resp, err := svc.Update(ctx, "org-1", "inv-1", &models.UpdateInvoiceRequest{Items: &newItems})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "OverpaidAfterEdit") {
			t.Fatalf("expected OverpaidAfterEdit warning, got %v", resp.Warnings)
		}
	})

	t.Run("rejects edits on paid and cancelled invoices", func(t *testing.T) {
		svc, f, _ := newInvoiceFixture()
		for _, status := range []models.InvoiceStatus{models.InvoiceStatusPaid, models.InvoiceStatusCancelled} {
			inv := f.seedInvoice("inv-"+string(status), "org-1", 10000)
			f.invoices.invoices[inv.ID].Status = status
			notes := "edit"
			_, err := svc.Update(ctx, "org-1", inv.ID, &models.UpdateInvoiceRequest{Notes: &notes})
			if !errors.Is(err, models.ErrInvalidState) {
				t.Errorf("%s: expected ErrInvalidState, got %v", status, err)
			}
		}
	})
}

func TestInvoiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newInvoiceFixture()

	invoice, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{
		ClientID: "client-1",
		Items:    []models.LineItem{{Label: "Monthly service", Qty: 1, UnitPriceCents: 15000}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sent, err := svc.Send(ctx, "org-1", invoice.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.Status != models.InvoiceStatusSent || sent.IssuedAt == nil {
		t.Fatalf("send result: status=%s issuedAt=%v", sent.Status, sent.IssuedAt)
	}

	// Sent invoices can be neither re-sent, cancelled nor deleted.
	if _, err := svc.Send(ctx, "org-1", invoice.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("second send: expected ErrInvalidState, got %v", err)
	}
	if _, err := svc.Cancel(ctx, "org-1", invoice.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("cancel sent: expected ErrInvalidState, got %v", err)
	}
	if err := svc.Delete(ctx, "org-1", invoice.ID); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("delete sent: expected ErrInvalidState, got %v", err)
	}
}

func TestCancelAndDeleteDraft(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newInvoiceFixture()
	items := []models.LineItem{{Label: "Monthly service", Qty: 1, UnitPriceCents: 15000}}

	draft, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{ClientID: "client-1", Items: items})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	cancelled, err := svc.Cancel(ctx, "org-1", draft.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.InvoiceStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	other, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{ClientID: "client-1", Items: items})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, "org-1", other.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := svc.Get(ctx, "org-1", other.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("deleted invoice must be gone, got %v", err)
	}
}

func TestInvoiceOrgScoping(t *testing.T) {
	ctx := context.Background()
	svc, f, _ := newInvoiceFixture()
	f.seedInvoice("inv-1", "org-1", 10000)

	if _, err := svc.Get(ctx, "org-2", "inv-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("cross-org read must 404, got %v", err)
	}
	due := time.Now().UTC()
	if _, err := svc.Update(ctx, "org-2", "inv-1", &models.UpdateInvoiceRequest{DueDate: &due}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("cross-org update must 404, got %v", err)
	}
}

// Numbers must stay unique and gapless when many requests create invoices
// for the same org and year at once.
func TestConcurrentCreatesNumberContiguously(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newInvoiceFixture()
	items := []models.LineItem{{Label: "Monthly service", Qty: 1, UnitPriceCents: 15000}}

	const n = 20
	numbers := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			invoice, err := svc.Create(ctx, "org-1", &models.CreateInvoiceRequest{ClientID: "client-1", Items: items})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			numbers <- invoice.InvoiceNumber
		}()
	}
	wg.Wait()
	close(numbers)

	year := time.Now().UTC().Year()
	seen := map[string]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("duplicate invoice number %s", num)
		}
		seen[num] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d numbers, got %d", n, len(seen))
	}
	for seq := 1; seq <= n; seq++ {
		want := fmt.Sprintf("INV-%d-%04d", year, seq)
		if !seen[want] {
			t.Errorf("sequence has a gap: missing %s", want)
		}
	}
}

// An edit that loses a race against a paid transition must not overwrite
// the settled invoice. The store repeats the state check in its write, so
// the stale update bounces even though the service saw an editable row.
func TestUpdateLosesRaceAgainstPaidTransition(t *testing.T) {
	ctx := context.Background()
	_, f, _ := newInvoiceFixture()
	stale := *f.seedInvoice("inv-1", "org-1", 10000)

	f.invoices.mu.Lock()
	f.invoices.invoices["inv-1"].Status = models.InvoiceStatusPaid
	f.invoices.mu.Unlock()

	stale.TotalCents = 6000
	if err := f.invoices.Update(ctx, &stale); !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}

	current, err := f.invoices.GetByID(ctx, "org-1", "inv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if current.TotalCents != 10000 {
		t.Errorf("paid invoice totals were overwritten: %d", current.TotalCents)
	}
}
