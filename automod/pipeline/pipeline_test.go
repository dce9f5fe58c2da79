package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mychatmanager/chatmod/automod/engine"
	"github.com/mychatmanager/chatmod/automod/enforce"
	"github.com/mychatmanager/chatmod/automod/eventbus"
	"github.com/mychatmanager/chatmod/automod/keylock"
	"github.com/mychatmanager/chatmod/automod/model"
	"github.com/mychatmanager/chatmod/automod/policystore"
	"github.com/mychatmanager/chatmod/automod/ratewindow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	coord    *Coordinator
	store    *policystore.MemStore
	platform *enforce.MockPlatform
	rec      *eventbus.Recorder
}

func newFixture(t *testing.T) *fixture {
	eng, store := engine.EngineTestFixture()
	platform := enforce.NewMockPlatform()
	bus := eventbus.NewBus(eventbus.Config{})
	rec := &eventbus.Recorder{}
	bus.SubscribeAll(rec.Handle)
	bus.Start()

	exec := enforce.NewExecutor(platform, bus, nil)
	exec.Notify = false
	coord := NewCoordinator(eng, exec, bus, Config{LockTimeout: 50 * time.Millisecond})
	return &fixture{coord: coord, store: store, platform: platform, rec: rec}
}

// shuts down the coordinator, which drains the bus, and returns the delivered event types
func (f *fixture) drain(t *testing.T) []string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.coord.Shutdown(ctx))
	return f.rec.Types()
}

var msgID atomic.Int64

func message(chatID, userID int64, text string) *model.MessageEvent {
	return &model.MessageEvent{
		ChatID:    chatID,
		UserID:    userID,
		MessageID: msgID.Add(1),
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestHandleCleanMessage(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	res, err := f.coord.Handle(context.Background(), message(-100, 7, "hello everyone"))
	assert.NoError(err)
	assert.False(res.ShortCircuit)
	assert.Empty(f.platform.CallLog())
	assert.Empty(f.drain(t))
}

func TestHandleSpam(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	msg := message(-100, 7, "click here for free stuff")
	res, err := f.coord.Handle(context.Background(), msg)
	assert.NoError(err)
	assert.True(res.ShortCircuit)
	assert.False(res.ActionFailed)
	assert.Equal(model.ActionWarn, res.Verdict.Action)
	assert.Equal([]string{fmt.Sprintf("delete -100 %d", msg.MessageID)}, f.platform.CallLog())
	assert.Equal([]string{model.EventSpamDetected, model.EventUserWarned}, f.drain(t))
}

func TestHandleBannedShortCircuit(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	policy := model.DefaultPolicy()
	policy.Action = model.ActionBan
	require.NoError(t, f.store.SavePolicy(ctx, -100, policy))

	res, err := f.coord.Handle(ctx, message(-100, 7, "join my channel"))
	assert.NoError(err)
	assert.Equal(model.ActionBan, res.Verdict.Action)

	// any later message from the member is removed without a new consequence
	res, err = f.coord.Handle(ctx, message(-100, 7, "hello again"))
	assert.NoError(err)
	assert.True(res.ShortCircuit)
	assert.True(res.Verdict.Banned)
	assert.Equal([]string{model.EventSpamDetected, model.EventUserBanned}, f.drain(t))
}

func TestHandleActionFailed(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	policy := model.DefaultPolicy()
	policy.Action = model.ActionKick
	require.NoError(t, f.store.SavePolicy(ctx, -100, policy))
	f.platform.Fail["kick"] = errors.New("not enough rights")

	res, err := f.coord.Handle(ctx, message(-100, 7, "join my channel"))
	assert.NoError(err)
	assert.True(res.ShortCircuit)
	assert.True(res.ActionFailed)

	f.drain(t)
	evts := f.rec.Events()
	if assert.Len(evts, 2) {
		assert.Equal(true, evts[1].Payload["actionFailed"])
	}
}

func TestHandleLockTimeout(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	unlock, err := f.coord.Locks.Lock(ctx, keylock.MemberKey(-100, 7))
	require.NoError(t, err)
	defer unlock()

	_, err = f.coord.Handle(ctx, message(-100, 7, "click here"))
	assert.True(errors.Is(err, model.ErrLockTimeout))
	// skipped entirely
	assert.Empty(f.platform.CallLog())

	// other members are unaffected
	_, err = f.coord.Handle(ctx, message(-100, 8, "hi"))
	assert.NoError(err)
}

func TestHandleAfterShutdown(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.drain(t)

	_, err := f.coord.Handle(context.Background(), message(-100, 7, "hello"))
	assert.True(errors.Is(err, model.ErrShuttingDown))
}

func TestHandleConcurrentFlood(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	// all within one burst window; the default policy allows 5
	now := time.Now()
	var wg sync.WaitGroup
	var shortCircuits atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := message(-100, 7, fmt.Sprintf("message number %d", i))
			msg.Timestamp = now
			res, err := f.coord.Handle(ctx, msg)
			assert.NoError(err)
			if res.ShortCircuit {
				shortCircuits.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(int32(15), shortCircuits.Load())

	types := f.drain(t)
	floods := 0
	for _, typ := range types {
		if typ == model.EventFloodDetected {
			floods++
		}
	}
	assert.Equal(15, floods)
}

func TestHandleRouteThrottle(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()
	route := &Route{Name: "help", Limit: 2, Window: time.Hour}

	command := func(userID int64) *model.MessageEvent {
		msg := message(-100, userID, "/help")
		msg.IsCommand = true
		return msg
	}
	for i := 0; i < 2; i++ {
		res, err := f.coord.HandleRoute(ctx, route, command(7))
		assert.NoError(err)
		assert.False(res.Throttled)
	}
	res, err := f.coord.HandleRoute(ctx, route, command(7))
	assert.NoError(err)
	assert.True(res.Throttled)

	res, err = f.coord.HandleRoute(ctx, route, command(8))
	assert.NoError(err)
	assert.False(res.Throttled)

	// unlimited route
	res, err = f.coord.HandleRoute(ctx, &Route{Name: "start"}, command(7))
	assert.NoError(err)
	assert.False(res.Throttled)
}

func TestHandleRouteSpamShortCircuits(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	res, err := f.coord.HandleRoute(context.Background(), &Route{Name: "echo", Limit: 1, Window: time.Hour}, message(-100, 7, "click here"))
	assert.NoError(err)
	assert.True(res.ShortCircuit)
	assert.False(res.Throttled)
}

func TestAdminOperations(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()
	esc := f.coord.Engine.Escalation

	_, err := f.coord.Handle(ctx, message(-100, 7, "click here"))
	assert.NoError(err)
	rec, err := esc.Record(ctx, -100, 7)
	assert.NoError(err)
	assert.Equal(uint(1), rec.Count)

	assert.NoError(f.coord.ResetWarnings(ctx, -100, 7))
	rec, err = esc.Record(ctx, -100, 7)
	assert.NoError(err)
	assert.Equal(uint(0), rec.Count)

	assert.NoError(f.coord.ConfirmUnmute(ctx, -100, 7))
	assert.NoError(f.coord.Unban(ctx, -100, 7))
	assert.NoError(f.coord.PolicyUpdated(ctx, -100))

	assert.Equal([]string{
		model.EventSpamDetected,
		model.EventUserWarned,
		model.EventWarningsReset,
		model.EventUserUnmuted,
		model.EventUserUnbanned,
		model.EventSettingsUpdated,
	}, f.drain(t))
}

func TestSweep(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.coord.Handle(ctx, message(-100, 7, "hello"))
	assert.NoError(err)
	windows := f.coord.Engine.Flood.Windows.(*ratewindow.MemWindowStore)
	assert.Equal(1, windows.Keys())
	assert.Equal(1, f.coord.Locks.Len())

	f.coord.Sweep(ctx, time.Now())
	assert.Equal(1, windows.Keys())

	f.coord.Sweep(ctx, time.Now().Add(2*DefaultRetention))
	assert.Equal(0, windows.Keys())
	assert.Equal(0, f.coord.Locks.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- f.coord.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
