package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
)

const feeKeyPrefix = "escrow:fees:"

// RedisFeeScheduleCache fronts the fee-schedule repository. Entries expire on
// their own; Invalidate covers the write path.
type RedisFeeScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFeeScheduleCache(client *redis.Client, ttl time.Duration) *RedisFeeScheduleCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisFeeScheduleCache{client: client, ttl: ttl}
}

func (c *RedisFeeScheduleCache) Get(ctx context.Context, arbiterID string) (*domain.FeeSchedule, bool, error) {
	raw, err := c.client.Get(ctx, feeKeyPrefix+arbiterID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var row domain.FeeSchedule
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		_ = c.client.Del(ctx, feeKeyPrefix+arbiterID).Err()
		return nil, false, nil
	}
	return &row, true, nil
}

func (c *RedisFeeScheduleCache) Set(ctx context.Context, row domain.FeeSchedule) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, feeKeyPrefix+row.ArbiterID, raw, c.ttl).Err()
}

func (c *RedisFeeScheduleCache) Invalidate(ctx context.Context, arbiterID string) error {
	return c.client.Del(ctx, feeKeyPrefix+arbiterID).Err()
}
