package model

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/username/dinartools/backend/src/logger"
)

// KVCacheRow represents a row in the kv_cache table.
type KVCacheRow struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// GetCacheValue returns the value stored under key. found is false when no row exists.
func GetCacheValue(ctx context.Context, db *sql.DB, key string) (row KVCacheRow, found bool, err error) {
	query := `SELECT key, value, updated_at FROM kv_cache WHERE key = ?`
	err = db.QueryRowContext(ctx, query, key).Scan(&row.Key, &row.Value, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return KVCacheRow{}, false, nil
	}
	if err != nil {
		return KVCacheRow{}, false, err
	}
	return row, true, nil
}

// PutCacheValue overwrites the whole entry for key.
func PutCacheValue(ctx context.Context, db *sql.DB, key, value string) error {
	query := `
        INSERT INTO kv_cache (key, value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = excluded.updated_at;
    `
	_, err := db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		logger.L.Error("Failed to upsert cache value", "key", key, "error", err)
	}
	return err
}
