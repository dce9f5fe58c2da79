package flood

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func message(text string) *model.MessageEvent {
	return &model.MessageEvent{ChatID: -100, UserID: 7, Text: text}
}

func TestBurstLimit(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(5, BurstLimit(10))
	assert.Equal(5, BurstLimit(100))
	assert.Equal(6, BurstLimit(120))
	assert.Equal(5, BurstLimit(0))
}

func TestBurstFlood(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{})
	policy := model.DefaultPolicy()

	for i := 0; i < 6; i++ {
		now := base.Add(time.Duration(i) * 400 * time.Millisecond)
		v := d.Check(ctx, message(fmt.Sprintf("hello %d", i)), now, policy)
		if i < 5 {
			assert.False(v.IsFlood, "message %d", i+1)
			continue
		}
		assert.True(v.IsFlood)
		assert.Equal(model.FloodRate, v.FloodType)
		// six messages over two seconds
		assert.InDelta(3.0, v.MessagesPerSecond, 0.001)
	}
}

func TestMinuteFlood(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{})
	policy := model.DefaultPolicy()
	policy.MessagesPerMinute = 5

	for i := 0; i < 6; i++ {
		v := d.Check(ctx, message(fmt.Sprintf("msg %d", i)), base.Add(time.Duration(i)*5*time.Second), policy)
		assert.Equal(i == 5, v.IsFlood, "message %d", i+1)
		if v.IsFlood {
			// six messages since the oldest one, 25s ago
			assert.InDelta(6.0/25.0, v.MessagesPerSecond, 1e-9)
		}
	}

	// window slides; a message a minute later is fine again
	v := d.Check(ctx, message("later"), base.Add(2*time.Minute), policy)
	assert.False(v.IsFlood)
}

func TestForwardFlood(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{})
	policy := model.DefaultPolicy()

	for i := 0; i < 6; i++ {
		m := message(fmt.Sprintf("forwarded %d", i))
		m.IsForward = true
		v := d.Check(ctx, m, base.Add(time.Duration(i)*4*time.Second), policy)
		if i < 5 {
			assert.False(v.IsFlood)
			continue
		}
		assert.True(v.IsFlood)
		assert.Equal(model.FloodForwards, v.FloodType)
	}

	// plain messages do not count against the forward limit
	v := d.Check(ctx, message("plain"), base.Add(25*time.Second), policy)
	assert.False(v.IsFlood)
}

func TestSimilarFlood(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{})
	policy := model.DefaultPolicy()

	at := func(i int) time.Time { return base.Add(time.Duration(i) * 10 * time.Second) }

	for i := 0; i < 3; i++ {
		assert.False(d.Check(ctx, message("same text"), at(i), policy).IsFlood)
	}
	v := d.Check(ctx, message("same text"), at(3), policy)
	assert.True(v.IsFlood)
	assert.Equal(model.FloodSimilar, v.FloodType)

	// comparison is case-sensitive
	assert.False(d.Check(ctx, message("SAME TEXT"), at(4), policy).IsFlood)
	assert.False(d.Check(ctx, message("same text"), at(5), policy).IsFlood)

	d.Forget(-100, 7)
	assert.False(d.Check(ctx, message("same text"), at(6), policy).IsFlood)
}

func TestFloodIsolatedPerUser(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{})
	policy := model.DefaultPolicy()

	for i := 0; i < 10; i++ {
		m := message(fmt.Sprintf("m %d", i))
		m.UserID = int64(i)
		assert.False(d.Check(ctx, m, base.Add(time.Duration(i)*100*time.Millisecond), policy).IsFlood)
	}
}

type brokenStore struct{}

var errBroken = errors.New("store down")

func (brokenStore) Record(ctx context.Context, key string, ts time.Time) error { return errBroken }
func (brokenStore) CountWithin(ctx context.Context, key string, ts time.Time, w time.Duration) (int, error) {
	return 0, errBroken
}
func (brokenStore) Within(ctx context.Context, key string, ts time.Time, w time.Duration) ([]time.Time, error) {
	return nil, errBroken
}
func (brokenStore) Prune(ctx context.Context, olderThan time.Time) (int, error) { return 0, errBroken }

func TestFloodFailsOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	d := NewDetector(Config{Windows: brokenStore{}})

	for i := 0; i < 10; i++ {
		assert.False(d.Check(ctx, message("x"), base, model.DefaultPolicy()).IsFlood)
	}
}

func TestMessagesPerSecond(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(0.0, MessagesPerSecond(nil, base))
	// elapsed is clamped to one second
	assert.Equal(4.0, MessagesPerSecond([]time.Time{base, base, base, base}, base.Add(200*time.Millisecond)))
}
