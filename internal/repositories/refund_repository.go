package repositories

import (
	"context"
	"errors"
	"fmt"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RefundRepository struct {
	DB *pgxpool.Pool
}

func NewRefundRepository(db *pgxpool.Pool) *RefundRepository {
	return &RefundRepository{DB: db}
}

// Create inserts the refund. The unique index on payment_id turns a
// concurrent double-refund into a constraint violation mapped to
// ErrAlreadyRefunded, instead of relying on the service's read-then-check.
func (r *RefundRepository) Create(ctx context.Context, refund *models.Refund) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO refunds (id, org_id, payment_id, amount_cents, reason, provider_ref, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (payment_id) DO NOTHING
		RETURNING created_at
	`,
		refund.ID,
		refund.OrgID,
		refund.PaymentID,
		refund.AmountCents,
		refund.Reason,
		refund.ProviderRef,
		refund.RefundedAt,
	).Scan(&refund.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAlreadyRefunded
	}
	if err != nil {
		return fmt.Errorf("failed to insert refund: %w", err)
	}
	return nil
}

func (r *RefundRepository) GetByPaymentID(ctx context.Context, orgID, paymentID string) (*models.Refund, error) {
	refund := &models.Refund{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, org_id, payment_id, amount_cents, COALESCE(reason, ''),
		       COALESCE(provider_ref, ''), refunded_at, created_at
		FROM refunds
		WHERE org_id = $1 AND payment_id = $2
	`, orgID, paymentID).Scan(
		&refund.ID,
		&refund.OrgID,
		&refund.PaymentID,
		&refund.AmountCents,
		&refund.Reason,
		&refund.ProviderRef,
		&refund.RefundedAt,
		&refund.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return refund, nil
}
