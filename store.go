package sessionx

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Backend is a scoped, string-valued key-value mechanism that may become unavailable.
type Backend interface {
	// Probe reports whether the backend can currently be used.
	Probe(ctx context.Context) error
	// Load returns the stored text for key; ok is false when nothing is stored.
	Load(ctx context.Context, key string) (value string, ok bool, err error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ValueKind tags how a stored value was read back.
type ValueKind int

const (
	// ValueParsed means the stored text was JSON and Parsed holds the decoded value.
	ValueParsed ValueKind = iota + 1
	// ValueRaw means the stored text was not JSON and Raw holds it verbatim.
	ValueRaw
)

// Value is the outcome of Store.Get.
type Value struct {
	Kind   ValueKind
	Parsed any
	Raw    string
}

// String returns the value when it is textual, either raw or a parsed JSON string.
func (v Value) String() (string, bool) {
	switch v.Kind {
	case ValueRaw:
		return v.Raw, true
	case ValueParsed:
		s, ok := v.Parsed.(string)
		return s, ok
	}
	return "", false
}

// Decode copies a parsed value into dst. Raw values only decode into *string.
func (v Value) Decode(dst any) error {
	switch v.Kind {
	case ValueParsed:
		data, err := json.Marshal(v.Parsed)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, dst)
	case ValueRaw:
		if s, ok := dst.(*string); ok {
			*s = v.Raw
			return nil
		}
		return fmt.Errorf("raw value cannot decode into %T", dst)
	}
	return errors.New("empty value")
}

// Store wraps a Backend so that no operation ever fails loudly: unavailability
// is logged and reported as absent or false.
type Store struct {
	backend Backend
	log     *zap.Logger
	metrics *Metrics
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for unavailability warnings.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// WithStoreMetrics counts unavailability events.
func WithStoreMetrics(m *Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore builds a Store over backend. A nil backend is permanently unavailable.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	s.log = orNop(s.log)
	return s
}

// Get reads key. Text that parses as JSON comes back as ValueParsed, anything
// else as ValueRaw. Parsed values have the generic JSON shape (float64 numbers,
// map[string]any objects); use Value.Decode to read them back into the type
// that was stored.
func (s *Store) Get(ctx context.Context, key string) (Value, bool) {
	if !s.available(ctx, "get", key) {
		return Value{}, false
	}
	raw, ok, err := s.backend.Load(ctx, key)
	if err != nil {
		s.unavailable("get", key, err)
		return Value{}, false
	}
	if !ok {
		return Value{}, false
	}
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Value{Kind: ValueRaw, Raw: raw}, true
	}
	return Value{Kind: ValueParsed, Parsed: parsed}, true
}

// GetString reads key as text.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	v, ok := s.Get(ctx, key)
	if !ok {
		return "", false
	}
	return v.String()
}

// Set writes value under key. Strings are stored verbatim unless the text would
// itself read back as JSON; everything else is stored as JSON.
func (s *Store) Set(ctx context.Context, key string, value any) bool {
	serialized, err := serialize(value)
	if err != nil {
		s.log.Warn("session store value not serializable",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}
	if !s.available(ctx, "set", key) {
		return false
	}
	if err := s.backend.Save(ctx, key, serialized); err != nil {
		s.unavailable("set", key, err)
		return false
	}
	return true
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) bool {
	if !s.available(ctx, "remove", key) {
		return false
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		s.unavailable("remove", key, err)
		return false
	}
	return true
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) available(ctx context.Context, op, key string) bool {
	if s.backend == nil {
		s.unavailable(op, key, errors.New("no backend configured"))
		return false
	}
	if err := s.backend.Probe(ctx); err != nil {
		s.unavailable(op, key, err)
		return false
	}
	return true
}

func (s *Store) unavailable(op, key string, err error) {
	s.metrics.storageUnavailable()
	s.log.Warn("session store unavailable",
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(newError(ErrCodeStorageUnavailable, err)),
	)
}

func serialize(value any) (string, error) {
	if s, ok := value.(string); ok {
		if !json.Valid([]byte(s)) {
			return s, nil
		}
		quoted, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		return string(quoted), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// OpenBackend builds the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg StoreConfig) (Backend, error) {
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, newError(ErrCodeInvalidConfig, err)
	}
	switch cfg.Driver {
	case DriverSQLite:
		backend, err := OpenSQLiteBackend(ctx, cfg.SQLiteDSN, cfg.Scope)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case DriverRedis:
		return OpenRedisBackend(cfg), nil
	case DriverMemory:
		return NewMemoryBackend(cfg.Scope), nil
	}
	return nil, newError(ErrCodeInvalidConfig, fmt.Errorf("unknown store driver %q", cfg.Driver))
}
