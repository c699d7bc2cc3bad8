package sessionx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type sessionEntry struct {
	bun.BaseModel `bun:"table:session_entries,alias:se"`

	Scope     string    `bun:"scope,pk"`
	EntryKey  string    `bun:"entry_key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLiteBackend persists entries in a single SQLite table keyed by (scope, key).
type SQLiteBackend struct {
	db    *bun.DB
	scope string
}

// OpenSQLiteBackend opens dsn through sqliteshim and prepares the schema.
func OpenSQLiteBackend(ctx context.Context, dsn, scope string) (*SQLiteBackend, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	backend, err := NewSQLiteBackend(ctx, bun.NewDB(sqldb, sqlitedialect.New()), scope)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return backend, nil
}

// NewSQLiteBackend uses an existing bun database, creating the table if needed.
func NewSQLiteBackend(ctx context.Context, db *bun.DB, scope string) (*SQLiteBackend, error) {
	if _, err := db.NewCreateTable().
		Model((*sessionEntry)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session_entries: %w", err)
	}
	return &SQLiteBackend{db: db, scope: scope}, nil
}

func (b *SQLiteBackend) Probe(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLiteBackend) Load(ctx context.Context, key string) (string, bool, error) {
	var entry sessionEntry
	err := b.db.NewSelect().
		Model(&entry).
		Where("scope = ?", b.scope).
		Where("entry_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (b *SQLiteBackend) Save(ctx context.Context, key, value string) error {
	entry := &sessionEntry{
		Scope:     b.scope,
		EntryKey:  key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := b.db.NewInsert().
		Model(entry).
		On("CONFLICT (scope, entry_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.NewDelete().
		Model((*sessionEntry)(nil)).
		Where("scope = ?", b.scope).
		Where("entry_key = ?", key).
		Exec(ctx)
	return err
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
