// Package cache keeps short-lived snapshots of saved schedules in Redis.
//
// Only the stored intent (timezone plus wall-clock windows) is cached. Instants are
// always resolved at query time so DST changes never go stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
	"github.com/redis/go-redis/v9"
)

// Client is the part of *redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type ScheduleCache struct {
	client Client
	ttl    time.Duration
	prefix string
}

// New returns a cache; a nil client gives a cache that always misses.
func New(client Client, ttl time.Duration) *ScheduleCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ScheduleCache{client: client, ttl: ttl, prefix: "scheduling:schedule:"}
}

func (c *ScheduleCache) key(ownerID string) string {
	return c.prefix + ownerID
}

func (c *ScheduleCache) Get(ctx context.Context, ownerID string) (model.Schedule, bool, error) {
	if c == nil || c.client == nil {
		return model.Schedule{}, false, nil
	}
	raw, err := c.client.Get(ctx, c.key(ownerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Schedule{}, false, nil
	}
	if err != nil {
		return model.Schedule{}, false, err
	}
	var s model.Schedule
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Schedule{}, false, err
	}
	return s, true, nil
}

func (c *ScheduleCache) Set(ctx context.Context, s model.Schedule) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(s.OwnerID), raw, c.ttl).Err()
}

func (c *ScheduleCache) Invalidate(ctx context.Context, ownerID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, c.key(ownerID)).Err()
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
