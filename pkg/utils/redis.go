package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is the subset of client options the dedup cache needs.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize    int
	DialTimeout time.Duration
	// IOTimeout applies to both reads and writes. Dedup claims are single
	// round trips, so one bound is enough.
	IOTimeout   time.Duration
	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 2 * time.Second
	}
	if out.IOTimeout <= 0 {
		out.IOTimeout = 500 * time.Millisecond
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	if out.DB < 0 {
		out.DB = 0
	}
	return out
}

// OpenRedis builds a client and fails unless the first PING succeeds.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.IOTimeout,
		WriteTimeout: cfg.IOTimeout,
	})
	if err := PingRedis(ctx, rdb, cfg.PingTimeout); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// PingRedis is the redis counterpart of HealthCheck.
func PingRedis(ctx context.Context, rdb redis.Cmdable, timeout time.Duration) error {
	if rdb == nil {
		return errors.New("redis ping failed: nil client")
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// ClaimOnce sets key with ttl only if it is absent (SET NX PX) and reports
// whether this call created it. An existing key keeps its original expiry.
func ClaimOnce(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, errors.New("redis client is nil")
	case key == "":
		return false, errors.New("key is required")
	case ttl <= 0:
		return false, errors.New("ttl must be > 0")
	}
	return rdb.SetNX(ctx, key, 1, ttl).Result()
}
