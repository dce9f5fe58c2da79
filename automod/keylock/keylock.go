// Per-key mutual exclusion, used to serialize evaluation of messages from the same chat member.
package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/semaphore"
)

// DefaultTimeout bounds how long Lock waits before giving up.
const DefaultTimeout = 5 * time.Second

type entry struct {
	sem *semaphore.Weighted
	// number of holders and waiters; only modified inside Compute
	refs     int
	lastUsed time.Time
}

type KeyLock struct {
	Timeout time.Duration

	entries *xsync.MapOf[string, *entry]
}

func New(timeout time.Duration) *KeyLock {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &KeyLock{
		Timeout: timeout,
		entries: xsync.NewMapOf[string, *entry](),
	}
}

func MemberKey(chatID, userID int64) string {
	return fmt.Sprintf("%d/%d", chatID, userID)
}

func (kl *KeyLock) acquireRef(key string) *entry {
	e, _ := kl.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			old = &entry{sem: semaphore.NewWeighted(1)}
		}
		old.refs++
		old.lastUsed = time.Now()
		return old, false
	})
	return e
}

func (kl *KeyLock) releaseRef(key string) {
	kl.entries.Compute(key, func(old *entry, loaded bool) (*entry, bool) {
		if !loaded {
			return old, true
		}
		old.refs--
		old.lastUsed = time.Now()
		return old, false
	})
}

// Lock blocks until the key is held exclusively by the caller, the timeout expires, or ctx is done.
//
// On timeout the returned error wraps model.ErrLockTimeout. The returned unlock func is safe to call more than once.
func (kl *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	e := kl.acquireRef(key)

	lockCtx, cancel := context.WithTimeout(ctx, kl.Timeout)
	defer cancel()
	if err := e.sem.Acquire(lockCtx, 1); err != nil {
		kl.releaseRef(key)
		// the caller's own deadline or cancellation is not a lock timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if lockCtx.Err() == context.DeadlineExceeded {
			lockTimeouts.Inc()
			return nil, fmt.Errorf("%w: %s", model.ErrLockTimeout, key)
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			kl.releaseRef(key)
		})
	}, nil
}

// Sweep drops entries with no holder or waiter which have been idle since before the cutoff. Returns the number removed.
func (kl *KeyLock) Sweep(idleSince time.Time) int {
	var candidates []string
	kl.entries.Range(func(k string, e *entry) bool {
		candidates = append(candidates, k)
		return true
	})
	removed := 0
	for _, k := range candidates {
		kl.entries.Compute(k, func(old *entry, loaded bool) (*entry, bool) {
			if loaded && old.refs == 0 && old.lastUsed.Before(idleSince) {
				removed++
				return old, true
			}
			return old, !loaded
		})
	}
	return removed
}

// Len is the number of tracked keys.
func (kl *KeyLock) Len() int {
	return kl.entries.Size()
}
