package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"poolops-backend/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens the shared pool. Billing traffic is many short
// transactions (a webhook insert plus a reconcile lock each take a
// connection for milliseconds), so the pool stays modest and leans on
// fast acquisition rather than size. Startup fails hard when the
// database cannot be reached; an invoicing service with no store has
// nothing to degrade to.
func Connect(cfg *config.Config) *pgxpool.Pool {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
	)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		log.Fatalf("[DB] invalid connection config: %v", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		log.Fatalf("[DB] connect failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("[DB] ping failed: %v", err)
	}

	log.Printf("[DB] Connected to %s/%s", cfg.Database.Host, cfg.Database.Name)
	return pool
}
