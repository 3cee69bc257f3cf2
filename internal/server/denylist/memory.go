package denylist

import (
	"context"
	"sync"
	"time"
)

// Memory keeps revoked ids in process. It only serves a single instance.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemory builds a Memory denylist. now may be nil to use the wall clock.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]time.Time), now: now}
}

func (m *Memory) Add(_ context.Context, jti string, until time.Time) error {
	now := m.now()
	if !until.After(now) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[jti] = until
	m.sweep(now)
	return nil
}

func (m *Memory) Contains(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.entries[jti]
	if !ok {
		return false, nil
	}
	if !until.After(m.now()) {
		delete(m.entries, jti)
		return false, nil
	}
	return true, nil
}

// sweep drops expired entries. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for k, until := range m.entries {
		if !until.After(now) {
			delete(m.entries, k)
		}
	}
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(m.now())
	return len(m.entries)
}
