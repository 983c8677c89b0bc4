package utils

import (
	"context"
	"testing"
	"time"
)

func TestClaimOnce_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := ClaimOnce(ctx, nil, "k", time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestPingRedis_NilClient(t *testing.T) {
	if err := PingRedis(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{DB: -1}.withDefaults()
	if c.PoolSize != 10 || c.DB != 0 || c.IOTimeout != 500*time.Millisecond || c.PingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}
