package escalation

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisWarningPrefix string = "warnings/"

// WarningStore keeping one redis hash per (chat, user).
type RedisWarningStore struct {
	Client *redis.Client
}

var _ WarningStore = (*RedisWarningStore)(nil)

func NewRedisWarningStore(redisURL string) (*RedisWarningStore, error) {
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
	return &RedisWarningStore{Client: rdb}, nil
}

func unixMilli(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMilli(s string) time.Time {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}

func decodeRecord(m map[string]string) WarningRecord {
	count, _ := strconv.ParseUint(m["count"], 10, 64)
	state := State(m["state"])
	if state == "" {
		state = StateClean
	}
	return WarningRecord{
		Count:               uint(count),
		LastReason:          m["last_reason"],
		RecentlyWarnedUntil: parseMilli(m["warned_until"]),
		State:               state,
		MutedUntil:          parseMilli(m["muted_until"]),
		LastSeen:            parseMilli(m["last_seen"]),
	}
}

func (s *RedisWarningStore) Get(ctx context.Context, chatID, userID int64) (WarningRecord, bool, error) {
	m, err := s.Client.HGetAll(ctx, redisWarningPrefix+recordKey(chatID, userID)).Result()
	if err == redis.Nil {
		return WarningRecord{}, false, nil
	} else if err != nil {
		return WarningRecord{}, false, err
	}
	if len(m) == 0 {
		return WarningRecord{}, false, nil
	}
	return decodeRecord(m), true, nil
}

func (s *RedisWarningStore) Put(ctx context.Context, chatID, userID int64, rec WarningRecord) error {
	return s.Client.HSet(ctx, redisWarningPrefix+recordKey(chatID, userID), map[string]any{
		"count":        strconv.FormatUint(uint64(rec.Count), 10),
		"last_reason":  rec.LastReason,
		"warned_until": unixMilli(rec.RecentlyWarnedUntil),
		"state":        string(rec.State),
		"muted_until":  unixMilli(rec.MutedUntil),
		"last_seen":    unixMilli(rec.LastSeen),
	}).Err()
}

func (s *RedisWarningStore) Delete(ctx context.Context, chatID, userID int64) error {
	return s.Client.Del(ctx, redisWarningPrefix+recordKey(chatID, userID)).Err()
}

func (s *RedisWarningStore) Sweep(ctx context.Context, inactiveSince time.Time) (int, error) {
	removed := 0
	iter := s.Client.Scan(ctx, 0, redisWarningPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		m, err := s.Client.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return removed, err
		}
		if len(m) > 0 && sweepable(decodeRecord(m), inactiveSince) {
			if err := s.Client.Del(ctx, iter.Val()).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, iter.Err()
}
