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

type QuoteRepository struct {
	DB *pgxpool.Pool
}

func NewQuoteRepository(db *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{DB: db}
}

const quoteColumns = `id, org_id, pool_id, client_id, issue_id, currency, items,
	subtotal_cents, tax_cents, total_cents, status, approved_at, rejected_at,
	COALESCE(rejection_reason, ''), COALESCE(notes, ''), created_at, updated_at`

func (r *QuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	itemsJSON, err := json.Marshal(quote.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	err = r.DB.QueryRow(ctx, `
		INSERT INTO quotes (id, org_id, pool_id, client_id, issue_id, currency, items,
			subtotal_cents, tax_cents, total_cents, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`,
		quote.ID,
		quote.OrgID,
		quote.PoolID,
		quote.ClientID,
		quote.IssueID,
		quote.Currency,
		itemsJSON,
		quote.SubtotalCents,
		quote.TaxCents,
		quote.TotalCents,
		quote.Status,
		quote.Notes,
	).Scan(&quote.CreatedAt, &quote.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert quote: %w", err)
	}
	return nil
}

func scanQuote(row pgx.Row) (*models.Quote, error) {
	q := &models.Quote{}
	var itemsJSON []byte
	err := row.Scan(
		&q.ID,
		&q.OrgID,
		&q.PoolID,
		&q.ClientID,
		&q.IssueID,
		&q.Currency,
		&itemsJSON,
		&q.SubtotalCents,
		&q.TaxCents,
		&q.TotalCents,
		&q.Status,
		&q.ApprovedAt,
		&q.RejectedAt,
		&q.RejectionReason,
		&q.Notes,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &q.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return q, nil
}

func (r *QuoteRepository) GetByID(ctx context.Context, orgID, id string) (*models.Quote, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	return scanQuote(row)
}

func (r *QuoteRepository) List(ctx context.Context, orgID string) ([]*models.Quote, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE org_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// Update persists the full quote state, including status timestamps; the
// service layer owns the lifecycle rules.
func (r *QuoteRepository) Update(ctx context.Context, quote *models.Quote) error {
	itemsJSON, err := json.Marshal(quote.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	tag, err := r.DB.Exec(ctx, `
		UPDATE quotes
		SET items = $1, subtotal_cents = $2, tax_cents = $3, total_cents = $4,
		    status = $5, approved_at = $6, rejected_at = $7, rejection_reason = $8,
		    notes = $9, updated_at = NOW()
		WHERE id = $10 AND org_id = $11
	`,
		itemsJSON,
		quote.SubtotalCents,
		quote.TaxCents,
		quote.TotalCents,
		quote.Status,
		quote.ApprovedAt,
		quote.RejectedAt,
		quote.RejectionReason,
		quote.Notes,
		quote.ID,
		quote.OrgID,
	)
	if err != nil {
		return fmt.Errorf("failed to update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
