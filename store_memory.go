package sessionx

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/patrickmn/go-cache"
)

// Store driver names accepted by OpenBackend.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

var errBackendDisabled = errors.New("storage disabled")

// MemoryBackend keeps entries in process memory. It can be switched off to
// reproduce disabled or private-mode storage.
type MemoryBackend struct {
	scope    string
	entries  *cache.Cache
	disabled atomic.Bool
}

// NewMemoryBackend returns an empty in-memory backend for scope.
func NewMemoryBackend(scope string) *MemoryBackend {
	return &MemoryBackend{
		scope:   scope,
		entries: cache.New(cache.NoExpiration, 0),
	}
}

// SetAvailable toggles whether the backend accepts operations.
func (m *MemoryBackend) SetAvailable(available bool) {
	m.disabled.Store(!available)
}

func (m *MemoryBackend) Probe(context.Context) error {
	if m.disabled.Load() {
		return errBackendDisabled
	}
	return nil
}

func (m *MemoryBackend) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries.Get(m.scoped(key))
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (m *MemoryBackend) Save(_ context.Context, key, value string) error {
	m.entries.Set(m.scoped(key), value, cache.NoExpiration)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.entries.Delete(m.scoped(key))
	return nil
}

func (m *MemoryBackend) Close() error {
	m.entries.Flush()
	return nil
}

func (m *MemoryBackend) scoped(key string) string {
	return m.scope + ":" + key
}
