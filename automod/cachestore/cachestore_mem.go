package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[int64, Snapshot]
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[int64, Snapshot](capacity, nil, ttl),
	}
}

// Returns nil on cache miss
func (s *MemCacheStore) Get(ctx context.Context, chatID int64) (*Snapshot, error) {
	v, ok := s.Data.Get(chatID)
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *MemCacheStore) Set(ctx context.Context, chatID int64, snap Snapshot) error {
	s.Data.Add(chatID, snap)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, chatID int64) error {
	s.Data.Remove(chatID)
	return nil
}
