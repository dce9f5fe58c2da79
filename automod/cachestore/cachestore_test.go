package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/stretchr/testify/assert"
)

func TestMemCacheStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, time.Hour)

	snap, err := cs.Get(ctx, 1)
	assert.NoError(err)
	assert.Nil(snap)

	assert.NoError(cs.Set(ctx, 1, Snapshot{Policy: model.DefaultPolicy(), Blacklist: []string{"spam"}}))
	snap, err = cs.Get(ctx, 1)
	assert.NoError(err)
	assert.NotNil(snap)
	assert.Equal([]string{"spam"}, snap.Blacklist)

	assert.NoError(cs.Purge(ctx, 1))
	snap, err = cs.Get(ctx, 1)
	assert.NoError(err)
	assert.Nil(snap)
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	cs := NewMemCacheStore(10, 20*time.Millisecond)

	assert.NoError(cs.Set(ctx, 1, Snapshot{Policy: model.DefaultPolicy()}))
	time.Sleep(50 * time.Millisecond)
	snap, err := cs.Get(ctx, 1)
	assert.NoError(err)
	assert.Nil(snap)
}

func TestRedisCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)
	ctx := context.Background()

	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fail()
	}
	assert.NoError(cs.Set(ctx, 42, Snapshot{Policy: model.DefaultPolicy(), Blacklist: []string{"scam"}}))
	snap, err := cs.Get(ctx, 42)
	assert.NoError(err)
	assert.NotNil(snap)
	assert.Equal(model.ActionWarn, snap.Policy.Action)
	assert.NoError(cs.Purge(ctx, 42))
}
