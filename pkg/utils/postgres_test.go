package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{}.withDefaults()
	if c.MaxOpenConns != 15 || c.MaxIdleConns != 15 || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}

	c = PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	if c.MaxIdleConns != 4 {
		t.Fatalf("idle conns must not exceed open conns: %+v", c)
	}
}

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), "pgx", "", PostgresPoolConfig{}); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestHealthCheck_NilDB(t *testing.T) {
	if err := HealthCheck(context.Background(), nil, time.Second); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("save template: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatalf("expected wrapped 23505 to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) || IsUniqueViolation(errors.New("x")) {
		t.Fatalf("unexpected match")
	}
}
