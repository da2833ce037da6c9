package repositories

import (
	"context"

	"poolops-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MetricsRepository persists API request logs for the ops dashboard.
type MetricsRepository struct {
	DB *pgxpool.Pool
}

func NewMetricsRepository(db *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{DB: db}
}

func (r *MetricsRepository) InsertAPILog(ctx context.Context, entry *models.APIRequestLog) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO api_request_logs (time, method, path, status_code, duration_ms,
			request_size, response_size, org_id, user_id, ip_address, user_agent, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		entry.Time,
		entry.Method,
		entry.Path,
		entry.StatusCode,
		entry.DurationMs,
		entry.RequestSize,
		entry.ResponseSize,
		entry.OrgID,
		entry.UserID,
		entry.IPAddress,
		entry.UserAgent,
		entry.ErrorMessage,
	)
	return err
}
