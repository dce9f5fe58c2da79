package escalation

import (
	"context"
	"fmt"
	"time"
)

type State string

const (
	StateClean  State = "clean"
	StateWarned State = "warned"
	StateMuted  State = "muted"
	StateBanned State = "banned"
)

// Per (chat, user) escalation history.
type WarningRecord struct {
	Count      uint   `json:"count"`
	LastReason string `json:"lastReason,omitempty"`
	// debounce; zero when not recently warned
	RecentlyWarnedUntil time.Time `json:"recentlyWarnedUntil"`
	State               State     `json:"state"`
	// expiry of the platform-side restriction, as last requested
	MutedUntil time.Time `json:"mutedUntil"`
	LastSeen   time.Time `json:"lastSeen"`
}

func (r WarningRecord) recentlyWarned(now time.Time) bool {
	return !r.RecentlyWarnedUntil.IsZero() && now.Before(r.RecentlyWarnedUntil)
}

// Storage for WarningRecords. Implementations must be safe for concurrent use across distinct keys; a single key is only ever written by one goroutine at a time.
type WarningStore interface {
	Get(ctx context.Context, chatID, userID int64) (WarningRecord, bool, error)
	Put(ctx context.Context, chatID, userID int64, rec WarningRecord) error
	Delete(ctx context.Context, chatID, userID int64) error
	// Removes clean records not seen since the given time. Returns the number removed.
	Sweep(ctx context.Context, inactiveSince time.Time) (int, error)
}

func recordKey(chatID, userID int64) string {
	return fmt.Sprintf("%d/%d", chatID, userID)
}

// records holding warnings or a terminal state are only reset administratively
func sweepable(rec WarningRecord, inactiveSince time.Time) bool {
	if rec.Count > 0 || rec.State == StateMuted || rec.State == StateBanned {
		return false
	}
	return rec.LastSeen.Before(inactiveSince)
}
