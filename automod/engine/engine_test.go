package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mychatmanager/chatmod/automod/cachestore"
	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func message(text string, at time.Time) *model.MessageEvent {
	return &model.MessageEvent{ChatID: -100, UserID: 7, MessageID: at.UnixMilli(), Text: text, Timestamp: at}
}

func TestEngineCleanMessage(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()

	v := eng.Evaluate(context.Background(), message("good morning everyone", base))
	assert.True(v.IsNone())
}

func TestEngineSpamExample(t *testing.T) {
	assert := assert.New(t)
	eng, store := EngineTestFixture()
	ctx := context.Background()

	text := "buy cheap followers now!! https://x.tk https://y.tk https://z.tk https://w.tk"
	for i, action := range []model.Action{model.ActionWarn, model.ActionMute, model.ActionKick, model.ActionBan} {
		chatID := int64(-200 - i)
		p := model.DefaultPolicy()
		p.Action = action
		assert.NoError(store.SavePolicy(ctx, chatID, p))

		m := message(text, base)
		m.ChatID = chatID
		v := eng.Evaluate(ctx, m)
		assert.Equal(action, v.Action)
		assert.Equal(model.SpamPattern, v.SpamType)
		assert.Equal(model.CauseSpam, v.Cause)
		assert.True(v.ShouldDeleteMessage)
	}
}

func TestEngineWarnsThenBans(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	var last model.Verdict
	for i := 0; i < 3; i++ {
		last = eng.Evaluate(ctx, message("click here for prizes", base.Add(time.Duration(i)*301*time.Second)))
	}
	assert.Equal(model.ActionBan, last.Action)
	assert.Equal(uint(3), last.WarningCount)

	// held as banned afterwards
	v := eng.Evaluate(ctx, message("hello again", base.Add(time.Hour)))
	assert.True(v.Banned)
	assert.True(v.ShouldDeleteMessage)
	assert.Equal(model.ActionNone, v.Action)
}

func TestEngineDebouncedMute(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	v := eng.Evaluate(ctx, message("click here", base))
	assert.Equal(model.ActionWarn, v.Action)
	v = eng.Evaluate(ctx, message("join my channel", base.Add(time.Minute)))
	assert.Equal(model.ActionMute, v.Action)
	assert.Equal(10*time.Minute, v.MuteDuration)
}

func TestEngineRepeatedSpamStaysMuted(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		v := eng.Evaluate(ctx, message("click here", base.Add(time.Duration(i)*10*time.Second)))
		if i == 0 {
			assert.Equal(model.ActionWarn, v.Action)
		} else {
			assert.Equal(model.ActionMute, v.Action, "message %d", i+1)
		}
		assert.Equal(uint(1), v.WarningCount, "message %d", i+1)
	}
}

func TestEngineFloodBurstDoesNotBan(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		v := eng.Evaluate(ctx, message(fmt.Sprintf("burst %d", i), base.Add(time.Duration(i)*200*time.Millisecond)))
		assert.NotEqual(model.ActionBan, v.Action, "message %d", i+1)
		assert.True(v.WarningCount <= 1, "message %d", i+1)
	}
}

func TestEngineFlood(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		v := eng.Evaluate(ctx, message(fmt.Sprintf("message number %d", i), base.Add(time.Duration(i)*300*time.Millisecond)))
		if i < 5 {
			assert.True(v.IsNone(), "message %d", i+1)
			continue
		}
		assert.Equal(model.ActionWarn, v.Action)
		assert.Equal(model.CauseFlood, v.Cause)
		// first flood warning keeps the message
		assert.False(v.ShouldDeleteMessage)
		assert.True(v.MessagesPerSecond > 0)
	}
}

func TestEngineSpamNotDoubleCountedAsFlood(t *testing.T) {
	assert := assert.New(t)
	eng, store := EngineTestFixture()
	ctx := context.Background()

	p := model.DefaultPolicy()
	p.Action = model.ActionMute
	assert.NoError(store.SavePolicy(ctx, -100, p))

	// five clean messages, then a spam one; spam wins and the flood check is skipped
	for i := 0; i < 5; i++ {
		eng.Evaluate(ctx, message(fmt.Sprintf("hi %d", i), base.Add(time.Duration(i)*100*time.Millisecond)))
	}
	v := eng.Evaluate(ctx, message("click here", base.Add(600*time.Millisecond)))
	assert.Equal(model.CauseSpam, v.Cause)
}

func TestEngineToggles(t *testing.T) {
	assert := assert.New(t)
	eng, store := EngineTestFixture()
	ctx := context.Background()

	p := model.DefaultPolicy()
	p.AntiSpamEnabled = false
	p.AntiFloodEnabled = false
	assert.NoError(store.SavePolicy(ctx, -100, p))

	for i := 0; i < 10; i++ {
		v := eng.Evaluate(ctx, message("click here", base.Add(time.Duration(i)*100*time.Millisecond)))
		assert.True(v.IsNone())
	}
}

func TestEngineSkipsCommands(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	ctx := context.Background()

	m := message("/spamsettings action ban", base)
	m.IsCommand = true
	assert.True(eng.Evaluate(ctx, m).IsNone())
	assert.True(eng.Evaluate(ctx, message("", base)).IsNone())
}

type brokenConfig struct{}

func (brokenConfig) Snapshot(ctx context.Context, chatID int64) (cachestore.Snapshot, error) {
	return cachestore.Snapshot{Policy: model.DefaultPolicy(), Blacklist: []string{"spam"}}, fmt.Errorf("%w: down", model.ErrConfigUnavailable)
}

func TestEngineDegradedConfig(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	eng.Config = brokenConfig{}

	v := eng.Evaluate(context.Background(), message("this is spam", base))
	assert.Equal(model.ActionWarn, v.Action)
	assert.Equal(model.SpamBlacklist, v.SpamType)
}

type panicConfig struct{}

func (panicConfig) Snapshot(ctx context.Context, chatID int64) (cachestore.Snapshot, error) {
	panic(errors.New("boom"))
}

func TestEngineRecoversPanic(t *testing.T) {
	assert := assert.New(t)
	eng, _ := EngineTestFixture()
	eng.Config = panicConfig{}

	assert.NotPanics(func() {
		v := eng.Evaluate(context.Background(), message("hello", base))
		assert.True(v.IsNone())
	})
}
