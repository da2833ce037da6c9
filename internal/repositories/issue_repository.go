package repositories

import (
	"context"
	"fmt"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IssueRepository updates the status of pool issues as quotes move through
// their lifecycle. Issues belong to the field-service subsystem; status is
// the only column billing touches.
type IssueRepository struct {
	DB *pgxpool.Pool
}

func NewIssueRepository(db *pgxpool.Pool) *IssueRepository {
	return &IssueRepository{DB: db}
}

func (r *IssueRepository) SetStatus(ctx context.Context, orgID, issueID, status string) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE issues
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND org_id = $3
	`, status, issueID, orgID)
	if err != nil {
		return fmt.Errorf("failed to update issue status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
