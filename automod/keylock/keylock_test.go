package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializes(t *testing.T) {
	assert := assert.New(t)
	kl := New(time.Second)
	ctx := context.Background()
	key := MemberKey(-100, 7)

	var wg sync.WaitGroup
	var lk sync.Mutex
	inside := 0
	maxInside := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := kl.Lock(ctx, key)
			if !assert.NoError(err) {
				return
			}
			lk.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			lk.Unlock()
			time.Sleep(time.Millisecond)
			lk.Lock()
			inside--
			lk.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(1, maxInside)
}

func TestLockIndependentKeys(t *testing.T) {
	assert := assert.New(t)
	kl := New(50 * time.Millisecond)
	ctx := context.Background()

	u1, err := kl.Lock(ctx, MemberKey(1, 1))
	assert.NoError(err)
	u2, err := kl.Lock(ctx, MemberKey(1, 2))
	assert.NoError(err)
	u1()
	u2()
}

func TestLockTimeout(t *testing.T) {
	assert := assert.New(t)
	kl := New(20 * time.Millisecond)
	ctx := context.Background()
	key := MemberKey(1, 1)

	unlock, err := kl.Lock(ctx, key)
	assert.NoError(err)

	_, err = kl.Lock(ctx, key)
	assert.True(errors.Is(err, model.ErrLockTimeout))

	unlock()
	// double unlock is a no-op
	unlock()

	unlock, err = kl.Lock(ctx, key)
	assert.NoError(err)
	unlock()
}

func TestLockCancelled(t *testing.T) {
	assert := assert.New(t)
	kl := New(time.Second)
	key := MemberKey(1, 1)

	unlock, err := kl.Lock(context.Background(), key)
	assert.NoError(err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = kl.Lock(ctx, key)
	assert.Error(err)
	assert.False(errors.Is(err, model.ErrLockTimeout))
}

func TestLockCallerDeadline(t *testing.T) {
	assert := assert.New(t)
	kl := New(time.Second)
	key := MemberKey(1, 1)

	unlock, err := kl.Lock(context.Background(), key)
	assert.NoError(err)
	defer unlock()

	// the caller's deadline fires well before the lock timeout
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = kl.Lock(ctx, key)
	assert.True(errors.Is(err, context.DeadlineExceeded))
	assert.False(errors.Is(err, model.ErrLockTimeout))
}

func TestSweep(t *testing.T) {
	assert := assert.New(t)
	kl := New(time.Second)
	ctx := context.Background()

	held, err := kl.Lock(ctx, MemberKey(1, 1))
	assert.NoError(err)
	idle, err := kl.Lock(ctx, MemberKey(1, 2))
	assert.NoError(err)
	idle()
	assert.Equal(2, kl.Len())

	assert.Equal(0, kl.Sweep(time.Now().Add(-time.Hour)))
	assert.Equal(1, kl.Sweep(time.Now().Add(time.Second)))
	assert.Equal(1, kl.Len())

	held()
	assert.Equal(1, kl.Sweep(time.Now().Add(time.Second)))
	assert.Equal(0, kl.Len())
}
