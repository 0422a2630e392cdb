package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis stores each record as one JSON value written with SETNX, so the
// first write for a key wins.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &redisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *redisStore) recordKey(key Key) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, key.JobID, key.Role)
}

func (s *redisStore) logKey(key Key) string {
	return s.recordKey(key) + ":log"
}

func (s *redisStore) SaveResult(ctx context.Context, key Key, result []byte) error {
	return s.save(ctx, Record{
		Key:       key,
		Status:    StatusSucceeded,
		Result:    json.RawMessage(result),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *redisStore) SaveError(ctx context.Context, key Key, rec ErrorRecord) error {
	return s.save(ctx, Record{
		Key:       key,
		Status:    StatusFailed,
		Error:     &rec,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *redisStore) save(ctx context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.recordKey(r.Key), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", r.Key.path(), err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", r.Key.path(), pkgerrors.ErrAlreadyStored)
	}

	return nil
}

func (s *redisStore) SaveLog(ctx context.Context, key Key, log string) error {
	if err := s.client.Set(ctx, s.logKey(key), log, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s log: %w", key.path(), err)
	}

	return nil
}

func (s *redisStore) Get(ctx context.Context, key Key) (Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%s: %w", key.path(), pkgerrors.ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load %s: %w", key.path(), err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal %s: %w", key.path(), err)
	}

	return r, nil
}

func (s *redisStore) GetLog(ctx context.Context, key Key) (string, error) {
	l, err := s.client.Get(ctx, s.logKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s log: %w", key.path(), pkgerrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s log: %w", key.path(), err)
	}

	return l, nil
}
