package cachestore

import (
	"context"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Snapshot is the cached per-chat configuration used for one or more decisions.
type Snapshot struct {
	Policy model.ChatPolicy
	// merged global and chat-specific terms, folded
	Blacklist []string
	FetchedAt time.Time
}

type CacheStore interface {
	Get(ctx context.Context, chatID int64) (*Snapshot, error)
	Set(ctx context.Context, chatID int64, snap Snapshot) error
	Purge(ctx context.Context, chatID int64) error
}
