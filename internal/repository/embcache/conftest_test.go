package embcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/v0idness/archipanion-ve/internal/db"
	"github.com/v0idness/archipanion-ve/internal/domain"
)

type mockEmbedder struct {
	result    domain.EmbeddingResult
	err       error
	healthErr error
	calls     atomic.Int32
	// gate, when set, blocks Embed until closed.
	gate chan struct{}
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.gate != nil {
		<-m.gate
	}
	return m.result, m.err
}

func (m *mockEmbedder) HealthCheck(_ context.Context) error { return m.healthErr }

// memKV is an in-memory kv with optional failure injection.
type memKV struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newMemKV() *memKV {
	return &memKV{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.entries[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out
}

func newTestEmbedder(t *testing.T, inner *mockEmbedder, entries int) (*Embedder, *memKV) {
	t.Helper()
	kv := newMemKV()
	cfg := Config{KeyPrefix: "arch:", Namespace: "small", TTL: time.Hour, Entries: entries}
	return New(inner, kv, cfg, nil, nil), kv
}
