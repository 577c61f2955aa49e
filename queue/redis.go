package queue

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the queue as one string value under Key.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb}
}

func (s *RedisStore) Load(ctx context.Context) ([]Survey, error) {
	value, err := s.rdb.Get(ctx, Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis.queue.load")
	}

	list, err := decode(value)
	return list, errors.Wrap(err, "redis.queue.decode")
}

func (s *RedisStore) Save(ctx context.Context, list []Survey) error {
	value, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "redis.queue.encode")
	}
	return errors.Wrap(s.rdb.Set(ctx, Key, value, 0).Err(), "redis.queue.save")
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return errors.Wrap(s.rdb.Del(ctx, Key).Err(), "redis.queue.clear")
}
