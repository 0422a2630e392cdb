package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/absmach/fedtree/pkg/errors"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[Key]Record
	logs    map[Key]string
}

func NewMemory() Store {
	return &memoryStore{
		records: make(map[Key]Record),
		logs:    make(map[Key]string),
	}
}

func (s *memoryStore) SaveResult(ctx context.Context, key Key, result []byte) error {
	return s.save(Record{
		Key:       key,
		Status:    StatusSucceeded,
		Result:    json.RawMessage(append([]byte(nil), result...)),
		CreatedAt: time.Now().UTC(),
	})
}

func (s *memoryStore) SaveError(ctx context.Context, key Key, rec ErrorRecord) error {
	return s.save(Record{
		Key:       key,
		Status:    StatusFailed,
		Error:     &rec,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *memoryStore) save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[r.Key]; ok {
		return fmt.Errorf("%s: %w", r.Key.path(), pkgerrors.ErrAlreadyStored)
	}
	s.records[r.Key] = r

	return nil
}

func (s *memoryStore) SaveLog(ctx context.Context, key Key, log string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[key] = log

	return nil
}

func (s *memoryStore) Get(ctx context.Context, key Key) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", key.path(), pkgerrors.ErrNotFound)
	}

	return r, nil
}

func (s *memoryStore) GetLog(ctx context.Context, key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[key]
	if !ok {
		return "", fmt.Errorf("%s log: %w", key.path(), pkgerrors.ErrNotFound)
	}

	return l, nil
}
