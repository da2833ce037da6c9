package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreditNoteRepository struct {
	DB *pgxpool.Pool
}

func NewCreditNoteRepository(db *pgxpool.Pool) *CreditNoteRepository {
	return &CreditNoteRepository{DB: db}
}

const creditNoteColumns = `id, org_id, client_id, invoice_id, COALESCE(reason, ''),
	items, amount_cents, applied_at, created_at`

func (r *CreditNoteRepository) Create(ctx context.Context, note *models.CreditNote) error {
	itemsJSON, err := json.Marshal(note.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	err = r.DB.QueryRow(ctx, `
		INSERT INTO credit_notes (id, org_id, client_id, invoice_id, reason, items, amount_cents, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`,
		note.ID,
		note.OrgID,
		note.ClientID,
		note.InvoiceID,
		note.Reason,
		itemsJSON,
		note.AmountCents,
		note.AppliedAt,
	).Scan(&note.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert credit note: %w", err)
	}
	return nil
}

func scanCreditNote(row pgx.Row) (*models.CreditNote, error) {
	n := &models.CreditNote{}
	var itemsJSON []byte
	err := row.Scan(
		&n.ID,
		&n.OrgID,
		&n.ClientID,
		&n.InvoiceID,
		&n.Reason,
		&itemsJSON,
		&n.AmountCents,
		&n.AppliedAt,
		&n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &n.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return n, nil
}

func (r *CreditNoteRepository) GetByID(ctx context.Context, orgID, id string) (*models.CreditNote, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT `+creditNoteColumns+`
		FROM credit_notes
		WHERE id = $1 AND org_id = $2
	`, id, orgID)
	return scanCreditNote(row)
}

func (r *CreditNoteRepository) List(ctx context.Context, orgID string, unappliedOnly bool) ([]*models.CreditNote, error) {
	query := `
		SELECT ` + creditNoteColumns + `
		FROM credit_notes
		WHERE org_id = $1
	`
	if unappliedOnly {
		query += ` AND applied_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.CreditNote
	for rows.Next() {
		n, err := scanCreditNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkApplied stamps applied_at and binds the target invoice. The
// applied_at IS NULL guard makes application at-most-once even when two
// apply calls race.
func (r *CreditNoteRepository) MarkApplied(ctx context.Context, orgID, id, invoiceID string, appliedAt time.Time) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE credit_notes
		SET invoice_id = $1, applied_at = $2
		WHERE id = $3 AND org_id = $4 AND applied_at IS NULL
	`, invoiceID, appliedAt, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to apply credit note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAlreadyApplied
	}
	return nil
}
