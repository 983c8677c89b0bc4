package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-pipeline/pkg/utils"
)

// RedisGuard shares dedup state between instances through Redis.
// When Redis is unreachable it fails open: the key is reported as new.
type RedisGuard struct {
	rdb    redis.Cmdable
	prefix string
	log    *slog.Logger
}

// NewRedisGuard namespaces keys with prefix so inbound and outbound stay independent.
func NewRedisGuard(rdb redis.Cmdable, prefix string, log *slog.Logger) *RedisGuard {
	if log == nil {
		log = slog.Default()
	}
	return &RedisGuard{rdb: rdb, prefix: prefix, log: log}
}

func (g *RedisGuard) Seen(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	created, err := utils.ClaimOnce(ctx, g.rdb, g.prefix+key, ttl)
	if err != nil {
		g.log.Warn("dedup redis unavailable, failing open", "keyspace", g.prefix, "err", err)
		return false
	}
	return !created
}
