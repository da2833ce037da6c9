package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientRepository is the minimal read surface over the CRM's client
// records: billing only ever needs to prove ownership before invoicing.
type ClientRepository struct {
	DB *pgxpool.Pool
}

func NewClientRepository(db *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{DB: db}
}

func (r *ClientRepository) Exists(ctx context.Context, orgID, clientID string) (bool, error) {
	var count int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM clients WHERE id = $1 AND org_id = $2
	`, clientID, orgID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PoolExists verifies a pool belongs to the org before quoting against it.
func (r *ClientRepository) PoolExists(ctx context.Context, orgID, poolID string) (bool, error) {
	var count int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM pools WHERE id = $1 AND org_id = $2
	`, poolID, orgID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
