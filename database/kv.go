package database

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// KV stores JSON documents in the kv table.
type KV struct {
	db *sql.DB
}

func NewKV(db *sql.DB) *KV {
	return &KV{db}
}

// Get decodes the document under key into v. It reports false when there
// is none.
func (kv *KV) Get(ctx context.Context, key string, v any) (bool, error) {
	var value string
	err := kv.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "db.kv.get %s", key)
	}
	return true, errors.Wrapf(json.Unmarshal([]byte(value), v), "db.kv.decode %s", key)
}

func (kv *KV) Put(ctx context.Context, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "db.kv.encode %s", key)
	}
	_, err = kv.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key,
		string(value),
	)
	return errors.Wrapf(err, "db.kv.put %s", key)
}
