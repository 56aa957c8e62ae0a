package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// SettingsKey holds the JSON-encoded summary.Settings.
const SettingsKey = "settings"

// KV is a string key-value store over the kv table.
// It satisfies usage.Store.
type KV struct {
	db  *sql.DB
	now func() time.Time
}

// NewKV creates a KV over db.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db, now: time.Now}
}

// Get returns the value for key and whether it exists.
func (kv *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := kv.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return v, true, nil
}

// Set writes value under key.
func (kv *KV) Set(ctx context.Context, key, value string) error {
	_, err := kv.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, kv.now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (kv *KV) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if _, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, k); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// Keys returns the keys starting with prefix, sorted.
// The comparison is literal: "_" and "%" in prefix are not wildcards.
func (kv *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := kv.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.NewInternal(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return keys, nil
}

// Settings returns the stored settings merged over the defaults.
// Unreadable settings fall back to the defaults.
func (kv *KV) Settings(ctx context.Context) (summary.Settings, error) {
	v, ok, err := kv.Get(ctx, SettingsKey)
	if err != nil {
		return summary.DefaultSettings(), err
	}
	if !ok {
		return summary.DefaultSettings(), nil
	}
	s, err := summary.LoadSettings([]byte(v))
	if err != nil {
		return summary.DefaultSettings(), nil
	}
	return s, nil
}

// SaveSettings stores s.
func (kv *KV) SaveSettings(ctx context.Context, s summary.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.NewInternal(err)
	}
	return kv.Set(ctx, SettingsKey, string(data))
}
