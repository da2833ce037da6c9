package repositories

import (
	"context"
	"errors"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServicePlanRepository reads recurring service plans. The scheduling
// subsystem owns these rows; the billing engine never writes them.
type ServicePlanRepository struct {
	DB *pgxpool.Pool
}

func NewServicePlanRepository(db *pgxpool.Pool) *ServicePlanRepository {
	return &ServicePlanRepository{DB: db}
}

const servicePlanColumns = `id, org_id, pool_id, client_id, price_cents, tax_pct, currency, status, created_at`

func (r *ServicePlanRepository) GetByID(ctx context.Context, orgID, id string) (*models.ServicePlan, error) {
	plan := &models.ServicePlan{}
	err := r.DB.QueryRow(ctx, `
		SELECT `+servicePlanColumns+`
		FROM service_plans
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(
		&plan.ID,
		&plan.OrgID,
		&plan.PoolID,
		&plan.ClientID,
		&plan.PriceCents,
		&plan.TaxPct,
		&plan.Currency,
		&plan.Status,
		&plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListActive returns active plans across all orgs for the daily batch run.
func (r *ServicePlanRepository) ListActive(ctx context.Context) ([]*models.ServicePlan, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+servicePlanColumns+`
		FROM service_plans
		WHERE status = $1
		ORDER BY org_id, created_at
	`, models.ServicePlanStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.ServicePlan
	for rows.Next() {
		plan := &models.ServicePlan{}
		err := rows.Scan(
			&plan.ID,
			&plan.OrgID,
			&plan.PoolID,
			&plan.ClientID,
			&plan.PriceCents,
			&plan.TaxPct,
			&plan.Currency,
			&plan.Status,
			&plan.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}
