package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

const paymentColumns = `id, org_id, invoice_id, method, provider, provider_ref,
	amount_cents, currency, status, processed_at, metadata, created_at`

// Create inserts a manual payment. Manual entries carry no provider_ref,
// so no idempotency handling applies.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	metaJSON, err := json.Marshal(payment.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = r.DB.QueryRow(ctx, `
		INSERT INTO payments (id, org_id, invoice_id, method, provider, provider_ref,
			amount_cents, currency, status, processed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`,
		payment.ID,
		payment.OrgID,
		payment.InvoiceID,
		payment.Method,
		payment.Provider,
		payment.ProviderRef,
		payment.AmountCents,
		payment.Currency,
		payment.Status,
		payment.ProcessedAt,
		metaJSON,
	).Scan(&payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// gatewayPaymentInsertSQL dedupes at the storage layer. The arbiter
// clause must carry the same WHERE predicate as the partial unique index
// idx_payments_provider_ref, otherwise Postgres cannot infer the index
// and rejects the statement. Gateway payments always supply a non-null
// provider_ref, so the predicate holds for every insert.
const gatewayPaymentInsertSQL = `
		INSERT INTO payments (id, org_id, invoice_id, method, provider, provider_ref,
			amount_cents, currency, status, processed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org_id, provider_ref) WHERE provider_ref IS NOT NULL DO NOTHING
		RETURNING created_at
	`

// CreateFromGateway inserts a gateway-originated payment, deciding
// idempotency at the storage layer: the partial unique index on
// (org_id, provider_ref) plus ON CONFLICT DO NOTHING means exactly one of
// two concurrent deliveries of the same webhook wins the insert. Returns
// inserted=false when this delivery was the duplicate.
func (r *PaymentRepository) CreateFromGateway(ctx context.Context, payment *models.Payment) (bool, error) {
	metaJSON, err := json.Marshal(payment.Metadata)
	if err != nil {
		return false, fmt.Errorf("failed to encode metadata: %w", err)
	}

	err = r.DB.QueryRow(ctx, gatewayPaymentInsertSQL,
		payment.ID,
		payment.OrgID,
		payment.InvoiceID,
		payment.Method,
		payment.Provider,
		payment.ProviderRef,
		payment.AmountCents,
		payment.Currency,
		payment.Status,
		payment.ProcessedAt,
		metaJSON,
	).Scan(&payment.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert gateway payment: %w", err)
	}
	return true, nil
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	var metaJSON []byte
	err := row.Scan(
		&p.ID,
		&p.OrgID,
		&p.InvoiceID,
		&p.Method,
		&p.Provider,
		&p.ProviderRef,
		&p.AmountCents,
		&p.Currency,
		&p.Status,
		&p.ProcessedAt,
		&metaJSON,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return p, nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Payment, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	return scanPayment(row)
}

func (r *PaymentRepository) GetByProviderRef(ctx context.Context, orgID, providerRef string) (*models.Payment, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE org_id = $1 AND provider_ref = $2
	`, orgID, providerRef)
	return scanPayment(row)
}

func (r *PaymentRepository) ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]*models.Payment, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE org_id = $1 AND invoice_id = $2
		ORDER BY processed_at DESC
	`, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdateStatus records the refund-driven status transition; the guard on
// the current status keeps a second refund from racing the first.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, orgID, id string, from, to models.PaymentStatus) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status = $1
		WHERE id = $2 AND org_id = $3 AND status = $4
	`, to, id, orgID, from)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidState
	}
	return nil
}

// ListMissingReceipts finds completed payments without a receipt row, the
// follow-up query for best-effort receipt generation that failed.
func (r *PaymentRepository) ListMissingReceipts(ctx context.Context, orgID string) ([]*models.MissingReceipt, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.invoice_id, p.amount_cents, p.processed_at
		FROM payments p
		LEFT JOIN receipts rc ON rc.payment_id = p.id
		WHERE p.org_id = $1 AND rc.id IS NULL
		ORDER BY p.processed_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []*models.MissingReceipt
	for rows.Next() {
		m := &models.MissingReceipt{}
		if err := rows.Scan(&m.PaymentID, &m.InvoiceID, &m.AmountCents, &m.ProcessedAt); err != nil {
			return nil, err
		}
		missing = append(missing, m)
	}
	return missing, rows.Err()
}
