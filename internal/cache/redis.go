package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookSeenTTL = 48 * time.Hour
	summaryTTL     = 5 * time.Minute

	webhookKeyFmt = "webhook:%s:%s"
	summaryKeyFmt = "billing:summary:%s"
)

var client *redis.Client

// Init connects to Redis. A failed connection is not fatal: the engine
// degrades to database-only idempotency checks and uncached summaries.
func Init(addr, password string, db int) error {
	client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		client = nil
		return err
	}
	return nil
}

// GetClient returns the Redis client, nil when degraded.
func GetClient() *redis.Client {
	return client
}

// MarkWebhookSeen records a gateway reference with SETNX and reports
// whether it was already present. This is only a fast path; the unique
// index on payments(org_id, provider_ref) is the authoritative dedup.
// When Redis is down it reports not-seen and lets the database decide.
func MarkWebhookSeen(ctx context.Context, orgID, reference string) (bool, error) {
	if client == nil {
		return false, nil
	}
	key := fmt.Sprintf(webhookKeyFmt, orgID, reference)
	set, err := client.SetNX(ctx, key, 1, webhookSeenTTL).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// GetCachedSummary returns the cached billing summary JSON for an org.
func GetCachedSummary(ctx context.Context, orgID string) ([]byte, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, fmt.Sprintf(summaryKeyFmt, orgID)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// CacheSummary stores the billing summary JSON for an org.
func CacheSummary(ctx context.Context, orgID string, data []byte) {
	if client == nil {
		return
	}
	client.Set(ctx, fmt.Sprintf(summaryKeyFmt, orgID), data, summaryTTL)
}

// InvalidateSummary drops the cached summary after any write that moves
// money: payments, refunds, credit notes, invoice issue or cancel.
func InvalidateSummary(ctx context.Context, orgID string) {
	if client == nil {
		return
	}
	client.Del(ctx, fmt.Sprintf(summaryKeyFmt, orgID))
}

// IsHealthy returns true if the Redis connection is working.
func IsHealthy() bool {
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx).Err() == nil
}
