// Package cache keeps the latest reconciled user_metrics row close to the dashboard
// read path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"copyinvest/src/model"
	"copyinvest/src/reconcile"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"
)

const writeTimeout = 2 * time.Second

// MetricsCache stores snapshots keyed by user. Get returns nil, nil on a miss.
type MetricsCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
	Set(ctx context.Context, m *model.UserMetrics) error
}

// NewFromConfig returns a redis-backed cache when ENABLE_CACHE is set, otherwise a no-op.
func NewFromConfig(ctx context.Context) (MetricsCache, error) {
	config := GetConfig()
	if !config.Enabled {
		return NopCache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Username: config.Username,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", config.Addr, err)
	}

	logger.WithField("addr", config.Addr).Info("[cache] redis metrics cache enabled")

	return NewRedisCache(client, config.Prefix, config.TTL), nil
}

type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(userID uuid.UUID) string {
	return c.prefix + userID.String()
}

func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var m model.UserMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode cached metrics: %w", err)
	}
	return &m, nil
}

func (c *RedisCache) Set(ctx context.Context, m *model.UserMetrics) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := c.client.Set(ctx, c.key(m.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Reconciled evicts the user's snapshot so the next read comes from the store.
// Observers run after the upsert returns, so two overlapping reconciles can notify
// out of commit order; writing the row here could pin the losing one until the TTL.
func (c *RedisCache) Reconciled(m *model.UserMetrics, _ time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := c.Invalidate(ctx, m.UserID); err != nil {
		logger.WithField("user_id", m.UserID).WithError(err).Warn("Failed to evict cached user metrics")
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Failed leaves the cached snapshot alone: a failed run never changes the stored row.
func (c *RedisCache) Failed(uuid.UUID, *reconcile.Error, time.Duration) {}

// NopCache never hits.
type NopCache struct{}

func (NopCache) Get(context.Context, uuid.UUID) (*model.UserMetrics, error) { return nil, nil }

func (NopCache) Set(context.Context, *model.UserMetrics) error { return nil }
