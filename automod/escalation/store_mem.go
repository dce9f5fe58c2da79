package escalation

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type MemWarningStore struct {
	records *xsync.MapOf[string, WarningRecord]
}

var _ WarningStore = (*MemWarningStore)(nil)

func NewMemWarningStore() *MemWarningStore {
	return &MemWarningStore{
		records: xsync.NewMapOf[string, WarningRecord](),
	}
}

func (s *MemWarningStore) Get(ctx context.Context, chatID, userID int64) (WarningRecord, bool, error) {
	rec, ok := s.records.Load(recordKey(chatID, userID))
	return rec, ok, nil
}

func (s *MemWarningStore) Put(ctx context.Context, chatID, userID int64, rec WarningRecord) error {
	s.records.Store(recordKey(chatID, userID), rec)
	return nil
}

func (s *MemWarningStore) Delete(ctx context.Context, chatID, userID int64) error {
	s.records.Delete(recordKey(chatID, userID))
	return nil
}

func (s *MemWarningStore) Sweep(ctx context.Context, inactiveSince time.Time) (int, error) {
	var candidates []string
	s.records.Range(func(k string, rec WarningRecord) bool {
		if sweepable(rec, inactiveSince) {
			candidates = append(candidates, k)
		}
		return true
	})
	removed := 0
	for _, k := range candidates {
		// re-check under the map's bucket lock, a message may have arrived meanwhile
		s.records.Compute(k, func(old WarningRecord, loaded bool) (WarningRecord, bool) {
			if loaded && sweepable(old, inactiveSince) {
				removed++
				return old, true
			}
			return old, !loaded
		})
	}
	return removed, nil
}

func (s *MemWarningStore) Len() int {
	return s.records.Size()
}
