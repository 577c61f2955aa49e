package queue

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// SQLiteStore keeps the queue as one row of the kv table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db}
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Survey, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", Key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "db.queue.load")
	}

	list, err := decode([]byte(value))
	return list, errors.Wrap(err, "db.queue.decode")
}

func (s *SQLiteStore) Save(ctx context.Context, list []Survey) error {
	value, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "db.queue.encode")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		Key,
		string(value),
	)
	return errors.Wrap(err, "db.queue.save")
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", Key)
	return errors.Wrap(err, "db.queue.clear")
}
