package repositories

import (
	"context"
	"errors"
	"fmt"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ReceiptRepository struct {
	DB *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{DB: db}
}

// NextReceiptNumber claims the next value of the per-(org, year) receipt
// sequence, same single-statement upsert as invoice numbering.
func (r *ReceiptRepository) NextReceiptNumber(ctx context.Context, orgID string, year int) (string, error) {
	var seq int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO receipt_sequences (org_id, year, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (org_id, year)
		DO UPDATE SET last_value = receipt_sequences.last_value + 1
		RETURNING last_value
	`, orgID, year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to claim receipt number: %w", err)
	}
	return fmt.Sprintf("REC-%d-%04d", year, seq), nil
}

// Create inserts the receipt. The unique index on payment_id guarantees
// at most one receipt per payment even if generation is retried.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO receipts (id, org_id, payment_id, receipt_number, pdf_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING created_at
	`,
		receipt.ID,
		receipt.OrgID,
		receipt.PaymentID,
		receipt.ReceiptNumber,
		receipt.PDFKey,
	).Scan(&receipt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already issued by an earlier attempt; not an error.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (r *ReceiptRepository) GetByPaymentID(ctx context.Context, orgID, paymentID string) (*models.Receipt, error) {
	receipt := &models.Receipt{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, org_id, payment_id, receipt_number, COALESCE(pdf_key, ''), created_at
		FROM receipts
		WHERE org_id = $1 AND payment_id = $2
	`, orgID, paymentID).Scan(
		&receipt.ID,
		&receipt.OrgID,
		&receipt.PaymentID,
		&receipt.ReceiptNumber,
		&receipt.PDFKey,
		&receipt.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
