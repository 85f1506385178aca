// Package lock provides the per-tenant sync locks that keep two
// reconciliation workers from draining the same backlog.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker acquires a named lock for a bounded duration. Acquire reports false
// when another holder owns the name.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Memory is a process-local Locker for tests and single-node deployments.
type Memory struct {
	mu    sync.Mutex
	holds map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{holds: make(map[string]time.Time)}
}

func (m *Memory) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if expiry, held := m.holds[name]; held && now.Before(expiry) {
		return false, nil
	}
	m.holds[name] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.holds, name)
	return nil
}
