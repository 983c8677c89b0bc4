package config

import (
	"strings"
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "chat", SSLMode: ""},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Dedup.Backend != "memory" || c.Dedup.TTL != 180*time.Second {
		t.Fatalf("unexpected dedup defaults: %+v", c.Dedup)
	}
	if c.Gateway.Timeout != 10*time.Second || c.Gateway.SendPath != "/message/sendText" {
		t.Fatalf("unexpected gateway defaults: %+v", c.Gateway)
	}
	if c.Pipeline.HistoryLimit != 6 || c.Pipeline.ManualSessionTTL != 15*time.Minute {
		t.Fatalf("unexpected pipeline defaults: %+v", c.Pipeline)
	}
	if c.Location().String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected location %q", c.Location())
	}
}

func TestValidate_RedisBackendRequiresRedis(t *testing.T) {
	c := validLocal()
	c.Dedup.Backend = "redis"
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "REDIS_HOST") {
		t.Fatalf("expected REDIS_HOST in error, got %v", err)
	}
}

func TestValidate_EnabledGatewayRequiresURLAndKey(t *testing.T) {
	c := validLocal()
	c.Gateway.Enabled = true
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.HasPrefix(err.Error(), "config errors:") {
		t.Fatalf("expected joined errors, got %v", err)
	}
}

func TestLoad_ReadsEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_NAME", "chat")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DEDUP_TTL", "90s")
	t.Setenv("GATEWAY_RATE_PER_SEC", "2.5")

	c, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.HTTPAddr() != ":9090" {
		t.Fatalf("unexpected addr %q", c.HTTPAddr())
	}
	if c.Dedup.TTL != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v", c.Dedup.TTL)
	}
	if c.Gateway.RatePerSec != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", c.Gateway.RatePerSec)
	}
}
