package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/dinartools/backend/src/model"
)

// SQLiteKVStore persists cache values in the kv_cache table so they survive restarts.
type SQLiteKVStore struct {
	db *sql.DB
}

func NewSQLiteKVStore(db *sql.DB) *SQLiteKVStore {
	return &SQLiteKVStore{db: db}
}

func (s *SQLiteKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	row, found, err := model.GetCacheValue(ctx, s.db, key)
	if err != nil || !found {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *SQLiteKVStore) Set(ctx context.Context, key, value string) error {
	return model.PutCacheValue(ctx, s.db, key, value)
}

// MemoryKVStore keeps values for the life of the process. Entries never
// expire here; staleness is judged by the reader.
type MemoryKVStore struct {
	c *cache.Cache
}

func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryKVStore) Get(_ context.Context, key string) (string, bool, error) {
	v, found := m.c.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

func (m *MemoryKVStore) Set(_ context.Context, key, value string) error {
	m.c.Set(key, value, cache.NoExpiration)
	return nil
}
