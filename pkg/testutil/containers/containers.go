//go:build integration

// Package containers starts the backing services used by integration tests.
// Each container is started once per test binary and shared by every suite
// in it; Ryuk removes them when the process exits.
package containers

import (
	"sync"
	"testing"
)

// Manager hands out the shared containers, starting each on first use.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	kafka    *KafkaContainer
	redis    *RedisContainer
}

var shared = &Manager{}

func GetManager() *Manager {
	return shared
}

func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return startOnce(m, &m.postgres, t, NewPostgresContainer)
}

func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return startOnce(m, &m.kafka, t, NewKafkaContainer)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return startOnce(m, &m.redis, t, NewRedisContainer)
}

func startOnce[T any](m *Manager, slot **T, t *testing.T, start func(*testing.T) *T) *T {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if *slot == nil {
		*slot = start(t)
	}
	return *slot
}
