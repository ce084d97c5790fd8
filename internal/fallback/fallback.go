// Package fallback keeps the last good payload per logical backend
// operation so fetches can degrade gracefully when the network is out.
package fallback

import (
	"context"
	"sync"
	"time"
)

// Store is the minimal surface the API client needs.
type Store interface {
	Get(ctx context.Context, op string) ([]byte, bool)
	Put(ctx context.Context, op string, payload []byte)
}

// Memory is the in-process store used when Redis is not configured.
type Memory struct {
	mu    sync.RWMutex
	store map[string]entry
	ttl   time.Duration
}

type entry struct {
	payload []byte
	ts      time.Time
}

// NewMemory creates a memory store; ttl <= 0 means entries never
// expire (stale data beats an empty screen).
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{store: make(map[string]entry), ttl: ttl}
}

func (m *Memory) Get(_ context.Context, op string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.store[op]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && time.Since(e.ts) > m.ttl {
		m.mu.Lock()
		delete(m.store, op)
		m.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

func (m *Memory) Put(_ context.Context, op string, payload []byte) {
	m.mu.Lock()
	m.store[op] = entry{payload: payload, ts: time.Now()}
	m.mu.Unlock()
}
