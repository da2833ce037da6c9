package repositories

import (
	"context"
	"time"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VisitRepository reads completed field visits, owned by the scheduling
// subsystem.
type VisitRepository struct {
	DB *pgxpool.Pool
}

func NewVisitRepository(db *pgxpool.Pool) *VisitRepository {
	return &VisitRepository{DB: db}
}

// ListCompletedInPeriod returns visits for a plan completed inside
// [periodStart, periodEnd), ordered by completion time so invoice line
// items come out chronological.
func (r *VisitRepository) ListCompletedInPeriod(ctx context.Context, orgID, planID string, periodStart, periodEnd time.Time) ([]*models.Visit, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, org_id, service_plan_id, pool_id, status, completed_at
		FROM visits
		WHERE org_id = $1
		  AND service_plan_id = $2
		  AND status = 'completed'
		  AND completed_at >= $3
		  AND completed_at < $4
		ORDER BY completed_at
	`, orgID, planID, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []*models.Visit
	for rows.Next() {
		v := &models.Visit{}
		if err := rows.Scan(&v.ID, &v.OrgID, &v.ServicePlanID, &v.PoolID, &v.Status, &v.CompletedAt); err != nil {
			return nil, err
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}
