package policystore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mychatmanager/chatmod/automod/cachestore"
	"github.com/mychatmanager/chatmod/automod/keyword"
	"github.com/mychatmanager/chatmod/automod/model"
)

// Resolver combines policy and blacklist stores with a snapshot cache and the global blacklist.
type Resolver struct {
	Policies   PolicyStore
	Blacklists BlacklistStore
	Cache      cachestore.CacheStore
	Logger     *slog.Logger
	global     []string
}

func NewResolver(policies PolicyStore, blacklists BlacklistStore, cache cachestore.CacheStore, global []string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = cachestore.NewMemCacheStore(10_000, 5*time.Minute)
	}
	return &Resolver{
		Policies:   policies,
		Blacklists: blacklists,
		Cache:      cache,
		Logger:     logger.With("component", "policystore"),
		global:     keyword.MergeTerms(global),
	}
}

func (r *Resolver) GlobalBlacklist() []string {
	return r.global
}

// Snapshot returns the effective policy and merged blacklist for a chat.
//
// If either store fails, the returned error wraps model.ErrConfigUnavailable and the snapshot is still usable: the default policy stands in for a missing policy, and the global terms for a missing chat blacklist. Degraded snapshots are not cached.
func (r *Resolver) Snapshot(ctx context.Context, chatID int64) (cachestore.Snapshot, error) {
	cached, err := r.Cache.Get(ctx, chatID)
	if err != nil {
		r.Logger.Warn("policy cache read failed", "chat", chatID, "err", err)
	} else if cached != nil {
		return *cached, nil
	}

	snap := cachestore.Snapshot{
		Policy:    model.DefaultPolicy(),
		Blacklist: r.global,
		FetchedAt: time.Now(),
	}
	var errs []error

	if r.Policies != nil {
		p, err := r.Policies.GetPolicy(ctx, chatID)
		if err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		} else {
			snap.Policy = p
		}
	}
	if r.Blacklists != nil {
		terms, err := r.Blacklists.GetBlacklist(ctx, chatID)
		if err != nil {
			errs = append(errs, fmt.Errorf("blacklist: %w", err))
		} else {
			snap.Blacklist = keyword.MergeTerms(r.global, terms)
		}
	}

	if len(errs) > 0 {
		return snap, fmt.Errorf("%w: chat %d: %v", model.ErrConfigUnavailable, chatID, errs)
	}
	if err := r.Cache.Set(ctx, chatID, snap); err != nil {
		r.Logger.Warn("policy cache write failed", "chat", chatID, "err", err)
	}
	return snap, nil
}

// Invalidate drops the cached snapshot, eg after an administrative settings change.
func (r *Resolver) Invalidate(ctx context.Context, chatID int64) error {
	return r.Cache.Purge(ctx, chatID)
}
