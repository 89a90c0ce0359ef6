package credential

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
	secure    bool
}

// MemoryBackend keeps entries in process memory and honours TTLs against its clock.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend returns an empty MemoryBackend. A nil now uses time.Now.
func NewMemoryBackend(now func() time.Time) *MemoryBackend {
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *MemoryBackend) SetMany(_ context.Context, entries map[string]Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, e := range entries {
		var expiresAt time.Time
		if e.TTL > 0 {
			expiresAt = now.Add(e.TTL)
		}
		m.entries[key] = memoryEntry{value: e.Value, expiresAt: expiresAt, secure: e.Secure}
	}
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Secure reports the secure flag recorded for key.
func (m *MemoryBackend) Secure(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key].secure
}
