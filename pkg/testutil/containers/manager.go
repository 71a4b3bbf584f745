//go:build integration

// Package containers starts shared backing services for integration tests.
// Each container is started once per test binary and reused by every suite;
// Ryuk removes them when the binary exits.
package containers

import (
	"sync"
	"testing"
)

var (
	postgresOnce sync.Once
	postgresInst *PostgresContainer
	postgresErr  error

	redisOnce sync.Once
	redisInst *RedisContainer
	redisErr  error

	redpandaOnce sync.Once
	redpandaInst *RedpandaContainer
	redpandaErr  error
)

// Postgres returns the shared Postgres container.
func Postgres(t *testing.T) *PostgresContainer {
	t.Helper()
	postgresOnce.Do(func() {
		postgresInst, postgresErr = startPostgres()
	})
	if postgresErr != nil {
		t.Fatalf("start postgres container: %v", postgresErr)
	}
	return postgresInst
}

// Redis returns the shared Redis container.
func Redis(t *testing.T) *RedisContainer {
	t.Helper()
	redisOnce.Do(func() {
		redisInst, redisErr = startRedis()
	})
	if redisErr != nil {
		t.Fatalf("start redis container: %v", redisErr)
	}
	return redisInst
}

// Redpanda returns the shared Kafka-compatible broker.
func Redpanda(t *testing.T) *RedpandaContainer {
	t.Helper()
	redpandaOnce.Do(func() {
		redpandaInst, redpandaErr = startRedpanda()
	})
	if redpandaErr != nil {
		t.Fatalf("start redpanda container: %v", redpandaErr)
	}
	return redpandaInst
}
