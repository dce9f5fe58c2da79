package ratewindow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mychatmanager/chatmod/automod/helpers"
)

const defaultShards = 64

type memShard struct {
	lk      sync.Mutex
	windows map[string][]int64
}

// In-process WindowStore, sharded by key hash. Operations on one key are safe for concurrent use.
type MemWindowStore struct {
	shards    []*memShard
	Retention time.Duration
}

func NewMemWindowStore(retention time.Duration) *MemWindowStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &MemWindowStore{
		shards:    make([]*memShard, defaultShards),
		Retention: retention,
	}
	for i := range s.shards {
		s.shards[i] = &memShard{windows: make(map[string][]int64)}
	}
	return s
}

func (s *MemWindowStore) shard(key string) *memShard {
	return s.shards[helpers.ShardOf(key, len(s.shards))]
}

func (s *MemWindowStore) Record(ctx context.Context, key string, ts time.Time) error {
	v := ts.UnixNano()
	sh := s.shard(key)
	sh.lk.Lock()
	defer sh.lk.Unlock()

	w := sh.windows[key]
	if n := len(w); n == 0 || w[n-1] <= v {
		w = append(w, v)
	} else {
		// out-of-order arrival; keep the slice sorted
		i := sort.Search(n, func(i int) bool { return w[i] > v })
		w = append(w, 0)
		copy(w[i+1:], w[i:])
		w[i] = v
	}

	// opportunistic prune of anything past the retention horizon
	cutoff := w[len(w)-1] - int64(s.Retention)
	if w[0] < cutoff {
		i := sort.Search(len(w), func(i int) bool { return w[i] >= cutoff })
		w = append([]int64(nil), w[i:]...)
	}
	sh.windows[key] = w
	return nil
}

// bounds of entries within (ts - window, ts]
func span(w []int64, ts time.Time, window time.Duration) (int, int) {
	hi := ts.UnixNano()
	lo := hi - int64(window)
	start := sort.Search(len(w), func(i int) bool { return w[i] > lo })
	end := sort.Search(len(w), func(i int) bool { return w[i] > hi })
	return start, end
}

func (s *MemWindowStore) CountWithin(ctx context.Context, key string, ts time.Time, window time.Duration) (int, error) {
	sh := s.shard(key)
	sh.lk.Lock()
	defer sh.lk.Unlock()

	start, end := span(sh.windows[key], ts, window)
	return end - start, nil
}

func (s *MemWindowStore) Within(ctx context.Context, key string, ts time.Time, window time.Duration) ([]time.Time, error) {
	sh := s.shard(key)
	sh.lk.Lock()
	defer sh.lk.Unlock()

	w := sh.windows[key]
	start, end := span(w, ts, window)
	out := make([]time.Time, 0, end-start)
	for _, v := range w[start:end] {
		out = append(out, time.Unix(0, v))
	}
	return out, nil
}

func (s *MemWindowStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := olderThan.UnixNano()
	removed := 0
	for _, sh := range s.shards {
		sh.lk.Lock()
		for k, w := range sh.windows {
			i := sort.Search(len(w), func(i int) bool { return w[i] >= cutoff })
			if i == 0 {
				continue
			}
			removed += i
			if i == len(w) {
				delete(sh.windows, k)
			} else {
				sh.windows[k] = append([]int64(nil), w[i:]...)
			}
		}
		sh.lk.Unlock()
	}
	return removed, nil
}

// Number of entries currently held for a key
func (s *MemWindowStore) Size(key string) int {
	sh := s.shard(key)
	sh.lk.Lock()
	defer sh.lk.Unlock()
	return len(sh.windows[key])
}

// Number of keys with at least one entry
func (s *MemWindowStore) Keys() int {
	n := 0
	for _, sh := range s.shards {
		sh.lk.Lock()
		n += len(sh.windows)
		sh.lk.Unlock()
	}
	return n
}
