package ratewindow

import (
	"context"
	"fmt"
	"time"
)

// Default horizon for retained history. Windows used for rate evaluation are much shorter.
const DefaultRetention = time.Hour

// Per-key sliding windows of event timestamps.
//
// Entries for a key are kept in timestamp order. Counting uses the half-open interval (ts - window, ts].
type WindowStore interface {
	Record(ctx context.Context, key string, ts time.Time) error
	CountWithin(ctx context.Context, key string, ts time.Time, window time.Duration) (int, error)
	// Returns the timestamps within (ts - window, ts], oldest first
	Within(ctx context.Context, key string, ts time.Time, window time.Duration) ([]time.Time, error)
	// Drops all entries strictly older than the given time. Returns the number of entries removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

func MessageKey(chatID, userID int64) string {
	return fmt.Sprintf("msg/%d/%d", chatID, userID)
}

func ForwardKey(chatID, userID int64) string {
	return fmt.Sprintf("fwd/%d/%d", chatID, userID)
}
