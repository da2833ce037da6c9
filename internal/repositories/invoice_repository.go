package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InvoiceRepository struct {
	DB *pgxpool.Pool
}

func NewInvoiceRepository(db *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{DB: db}
}

const invoiceColumns = `id, org_id, client_id, pool_id, visit_id, quote_id, invoice_number,
	currency, items, subtotal_cents, tax_cents, total_cents, paid_cents, status,
	due_date, issued_at, paid_at, metadata, COALESCE(notes, ''), created_at, updated_at`

// nextInvoiceNumber claims the next sequence value for (org, year) inside
// the caller's transaction. The ON CONFLICT upsert is a single atomic
// statement, so concurrent creators serialize on the counter row and can
// neither reuse nor skip a number.
func nextInvoiceNumber(ctx context.Context, tx pgx.Tx, orgID string, year int) (string, error) {
	var seq int64
	err := tx.QueryRow(ctx, `
		INSERT INTO invoice_sequences (org_id, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (org_id, year)
		DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value
	`, orgID, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to claim invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%d-%04d", year, seq), nil
}

// Create persists a new invoice, assigning its number from the per-(org,
// year) sequence in the same transaction as the insert.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}
	metaJSON, err := json.Marshal(invoice.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	year := time.Now().UTC().Year()
	number, err := nextInvoiceNumber(ctx, tx, invoice.OrgID, year)
	if err != nil {
		return err
	}
	invoice.InvoiceNumber = number

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (id, org_id, client_id, pool_id, visit_id, quote_id, invoice_number,
			currency, items, subtotal_cents, tax_cents, total_cents, paid_cents, status,
			due_date, issued_at, metadata, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at
	`,
		invoice.ID,
		invoice.OrgID,
		invoice.ClientID,
		invoice.PoolID,
		invoice.VisitID,
		invoice.QuoteID,
		invoice.InvoiceNumber,
		invoice.Currency,
		itemsJSON,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.TotalCents,
		invoice.PaidCents,
		invoice.Status,
		invoice.DueDate,
		invoice.IssuedAt,
		metaJSON,
		invoice.Notes,
	).Scan(&invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_invoices_plan_period" {
			return fmt.Errorf("%w: an invoice already covers this plan and period", models.ErrDuplicatePeriod)
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit invoice: %w", err)
	}
	return nil
}

func scanInvoice(row pgx.Row) (*models.Invoice, error) {
	inv := &models.Invoice{}
	var itemsJSON, metaJSON []byte
	err := row.Scan(
		&inv.ID,
		&inv.OrgID,
		&inv.ClientID,
		&inv.PoolID,
		&inv.VisitID,
		&inv.QuoteID,
		&inv.InvoiceNumber,
		&inv.Currency,
		&itemsJSON,
		&inv.SubtotalCents,
		&inv.TaxCents,
		&inv.TotalCents,
		&inv.PaidCents,
		&inv.Status,
		&inv.DueDate,
		&inv.IssuedAt,
		&inv.PaidAt,
		&metaJSON,
		&inv.Notes,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &inv.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &inv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return inv, nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	return scanInvoice(row)
}

func (r *InvoiceRepository) List(ctx context.Context, orgID string) ([]*models.Invoice, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []*models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ExistsForQuote reports whether a quote already seeded an invoice.
func (r *InvoiceRepository) ExistsForQuote(ctx context.Context, orgID, quoteID string) (bool, error) {
	var count int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices WHERE org_id = $1 AND quote_id = $2
	`, orgID, quoteID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindByPlanPeriod is the auto-billing dedup check: an invoice tagged with
// the plan id and the same period start means the period was already billed.
func (r *InvoiceRepository) FindByPlanPeriod(ctx context.Context, orgID, planID string, periodStart time.Time) (*models.Invoice, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE org_id = $1
		  AND metadata->>'service_plan_id' = $2
		  AND metadata->>'period_start' = $3
		LIMIT 1
	`, orgID, planID, periodStart.UTC().Format("2006-01-02"))
	return scanInvoice(row)
}

// Update rewrites the editable fields. Totals come from the caller, which
// must have recomputed them from items; paid_cents is deliberately absent.
// The WHERE clause repeats the state guard the service already checked so
// an edit racing a concurrent paid or cancelled transition cannot land on
// the terminal row.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *models.Invoice) error {
	itemsJSON, err := json.Marshal(invoice.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	tag, err := r.DB.Exec(ctx, `
		UPDATE invoices
		SET items = $1, subtotal_cents = $2, tax_cents = $3, total_cents = $4,
		    due_date = $5, notes = $6, updated_at = NOW()
		WHERE id = $7 AND org_id = $8 AND status NOT IN ($9, $10)
	`,
		itemsJSON,
		invoice.SubtotalCents,
		invoice.TaxCents,
		invoice.TotalCents,
		invoice.DueDate,
		invoice.Notes,
		invoice.ID,
		invoice.OrgID,
		models.InvoiceStatusPaid,
		models.InvoiceStatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, invoice.OrgID, invoice.ID); errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		return models.ErrInvalidState
	}
	return nil
}

// MarkSent transitions draft -> sent. The WHERE clause carries the state
// guard so a concurrent send cannot double-fire.
func (r *InvoiceRepository) MarkSent(ctx context.Context, orgID, id string, issuedAt time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE invoices
		SET status = $1, issued_at = $2, updated_at = NOW()
		WHERE id = $3 AND org_id = $4 AND status = $5
	`, models.InvoiceStatusSent, issuedAt, id, orgID, models.InvoiceStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to mark invoice sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// MarkCancelled transitions draft -> cancelled. Cancelled is terminal.
func (r *InvoiceRepository) MarkCancelled(ctx context.Context, orgID, id string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE invoices
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND org_id = $3 AND status = $4
	`, models.InvoiceStatusCancelled, id, orgID, models.InvoiceStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// Delete removes a draft invoice. Non-draft rows are untouched.
func (r *InvoiceRepository) Delete(ctx context.Context, orgID, id string) error {
	tag, err := r.DB.Exec(ctx, `
		DELETE FROM invoices
		WHERE id = $1 AND org_id = $2 AND status = $3
	`, id, orgID, models.InvoiceStatusDraft)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// Reconcile recomputes paid_cents and status from the child records inside
// one transaction, holding the invoice row lock for its duration. This is
// the single writer of paid_cents: every payment, refund and credit-note
// mutation funnels through here, so two concurrent money operations on the
// same invoice serialize instead of interleaving a read-modify-write.
func (r *InvoiceRepository) Reconcile(ctx context.Context, orgID, invoiceID string) (*models.Invoice, error) {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reconcile: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := scanInvoice(tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`, invoiceID, orgID))
	if err != nil {
		return nil, err
	}

	var paymentSum int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE invoice_id = $1 AND org_id = $2 AND status IN ($3, $4, $5)
	`, invoiceID, orgID, models.PaymentStatusCompleted, models.PaymentStatusPartiallyRefunded, models.PaymentStatusRefunded).Scan(&paymentSum)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments: %w", err)
	}

	var refundSum int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(r.amount_cents), 0)
		FROM refunds r
		JOIN payments p ON p.id = r.payment_id
		WHERE p.invoice_id = $1 AND r.org_id = $2
	`, invoiceID, orgID).Scan(&refundSum)
	if err != nil {
		return nil, fmt.Errorf("failed to sum refunds: %w", err)
	}

	var creditSum int64
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM credit_notes
		WHERE invoice_id = $1 AND org_id = $2 AND applied_at IS NOT NULL
	`, invoiceID, orgID).Scan(&creditSum)
	if err != nil {
		return nil, fmt.Errorf("failed to sum credit notes: %w", err)
	}

	inv.ApplyReconciliation(paymentSum, refundSum, creditSum, time.Now().UTC())

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET paid_cents = $1, status = $2, paid_at = $3, updated_at = NOW()
		WHERE id = $4 AND org_id = $5
	`, inv.PaidCents, inv.Status, inv.PaidAt, invoiceID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to write reconciled invoice: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reconcile: %w", err)
	}
	return inv, nil
}

// Summary aggregates the org dashboard numbers.
func (r *InvoiceRepository) Summary(ctx context.Context, orgID string) (*models.BillingSummary, error) {
	summary := &models.BillingSummary{InvoiceCounts: map[string]int64{}}

	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_cents - paid_cents), 0), COALESCE(SUM(paid_cents), 0)
		FROM invoices
		WHERE org_id = $1
		GROUP BY status
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count, outstanding, collected int64
		if err := rows.Scan(&status, &count, &outstanding, &collected); err != nil {
			return nil, err
		}
		summary.InvoiceCounts[status] = count
		if status == string(models.InvoiceStatusSent) {
			summary.OutstandingCents += outstanding
		}
		summary.CollectedCents += collected
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments WHERE org_id = $1
	`, orgID).Scan(&summary.PaymentCount)
	if err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM credit_notes WHERE org_id = $1 AND applied_at IS NULL
	`, orgID).Scan(&summary.UnappliedCredits)
	if err != nil {
		return nil, err
	}

	return summary, nil
}
