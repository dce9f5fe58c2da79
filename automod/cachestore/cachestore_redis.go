package cachestore

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	// the local tier keeps its own, shorter, expiry so that invalidations from other processes are picked up quickly
	localTTL := ttl / 4
	if localTTL < time.Second {
		localTTL = time.Second
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, localTTL),
	})
	return &RedisCacheStore{
		Data: data,
		TTL:  ttl,
	}, nil
}

func redisCacheKey(chatID int64) string {
	return "cache/policy/" + strconv.FormatInt(chatID, 10)
}

func (s *RedisCacheStore) Get(ctx context.Context, chatID int64) (*Snapshot, error) {
	var snap Snapshot
	err := s.Data.Get(ctx, redisCacheKey(chatID), &snap)
	if err == cache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, chatID int64, snap Snapshot) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisCacheKey(chatID),
		Value: snap,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, chatID int64) error {
	err := s.Data.Delete(ctx, redisCacheKey(chatID))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
