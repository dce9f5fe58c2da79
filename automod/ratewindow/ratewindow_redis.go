package ratewindow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisWindowPrefix string = "window/"

// WindowStore backed by one redis sorted set per key, scored by unix microseconds.
type RedisWindowStore struct {
	Client    *redis.Client
	Retention time.Duration
}

var _ WindowStore = (*RedisWindowStore)(nil)

func NewRedisWindowStore(redisURL string, retention time.Duration) (*RedisWindowStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisWindowStore{
		Client:    rdb,
		Retention: retention,
	}, nil
}

func score(t time.Time) int64 {
	return t.UnixMicro()
}

func (s *RedisWindowStore) Record(ctx context.Context, key string, ts time.Time) error {
	k := redisWindowPrefix + key
	sc := score(ts)
	cutoff := sc - s.Retention.Microseconds()

	// record and trim in a single round-trip
	multi := s.Client.Pipeline()
	multi.ZAdd(ctx, k, redis.Z{
		Score:  float64(sc),
		Member: strconv.FormatInt(sc, 10) + "-" + uuid.NewString(),
	})
	multi.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(cutoff, 10))
	multi.Expire(ctx, k, s.Retention)
	_, err := multi.Exec(ctx)
	return err
}

func bounds(ts time.Time, window time.Duration) (string, string) {
	hi := score(ts)
	lo := hi - window.Microseconds()
	return "(" + strconv.FormatInt(lo, 10), strconv.FormatInt(hi, 10)
}

func (s *RedisWindowStore) CountWithin(ctx context.Context, key string, ts time.Time, window time.Duration) (int, error) {
	lo, hi := bounds(ts, window)
	c, err := s.Client.ZCount(ctx, redisWindowPrefix+key, lo, hi).Result()
	if err == redis.Nil {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return int(c), nil
}

func (s *RedisWindowStore) Within(ctx context.Context, key string, ts time.Time, window time.Duration) ([]time.Time, error) {
	lo, hi := bounds(ts, window)
	zs, err := s.Client.ZRangeByScoreWithScores(ctx, redisWindowPrefix+key, &redis.ZRangeBy{
		Min: lo,
		Max: hi,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		out = append(out, time.UnixMicro(int64(z.Score)))
	}
	return out, nil
}

// Keys also carry a TTL of the retention horizon, so this mostly trims long-lived active keys.
func (s *RedisWindowStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	max := "(" + strconv.FormatInt(score(olderThan), 10)
	removed := 0
	iter := s.Client.Scan(ctx, 0, redisWindowPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		n, err := s.Client.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Result()
		if err != nil {
			return removed, fmt.Errorf("pruning %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	return removed, nil
}
