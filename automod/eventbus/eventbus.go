package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Handler errors are logged and counted; they never affect other handlers.
type Handler func(ctx context.Context, evt model.Event) error

type SubscriptionID uint64

// subscriptions under this key receive every event type
const allEvents = "*"

type Config struct {
	// capacity of the main queue
	Capacity int
	// per-subscription buffer between the dispatcher and the handler goroutine
	MailboxSize int
	// how long Publish waits for room in a full queue before giving up
	EnqueueTimeout time.Duration
	Logger         *slog.Logger
}

type subscription struct {
	id        SubscriptionID
	eventType string
	handler   Handler
	mailbox   chan model.Event
}

// In-process pub/sub with a bounded queue.
//
// A single dispatcher drains the queue in publish order and hands each event to per-subscription mailboxes. Each subscription runs its handler on its own goroutine, in order, so a slow handler does not hold back other subscribers until its mailbox fills. A full mailbox stalls the dispatcher, which backs up the queue, and Publish then fails after its enqueue timeout.
type Bus struct {
	logger         *slog.Logger
	queue          chan model.Event
	mailboxSize    int
	enqueueTimeout time.Duration

	// held for reading while publishing, for writing to close the bus
	plk    sync.RWMutex
	closed bool

	slk    sync.RWMutex
	subs   map[string][]*subscription
	nextID atomic.Uint64
	subsWg sync.WaitGroup

	started atomic.Bool
	closing chan struct{}
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBus(config Config) *Bus {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	capacity := config.Capacity
	if capacity <= 0 {
		capacity = 10_000
	}
	mailbox := config.MailboxSize
	if mailbox <= 0 {
		mailbox = 1024
	}
	timeout := config.EnqueueTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		logger:         logger.With("component", "eventbus"),
		queue:          make(chan model.Event, capacity),
		mailboxSize:    mailbox,
		enqueueTimeout: timeout,
		subs:           make(map[string][]*subscription),
		closing:        make(chan struct{}),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start launches the dispatcher. Calling it more than once has no effect.
func (b *Bus) Start() {
	if !b.started.CompareAndSwap(false, true) {
		return
	}
	go b.dispatch()
}

// Publish enqueues an event. It returns false if the bus is not started, is shutting down, or stayed full for the whole enqueue timeout.
func (b *Bus) Publish(evt model.Event) bool {
	b.plk.RLock()
	defer b.plk.RUnlock()
	if b.closed || !b.started.Load() {
		eventsRejected.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case b.queue <- evt:
	default:
		t := time.NewTimer(b.enqueueTimeout)
		defer t.Stop()
		select {
		case b.queue <- evt:
		case <-t.C:
			b.logger.Warn("event queue saturated, dropping event", "type", evt.Type, "id", evt.EventID)
			eventsRejected.WithLabelValues("saturated").Inc()
			return false
		}
	}
	eventsPublished.WithLabelValues(evt.Type).Inc()
	queueDepth.Set(float64(len(b.queue)))
	return true
}

// Subscribe registers a handler for one event type. Returns zero if the bus is already shut down.
func (b *Bus) Subscribe(eventType string, h Handler) SubscriptionID {
	b.plk.RLock()
	defer b.plk.RUnlock()
	if b.closed {
		return 0
	}
	sub := &subscription{
		id:        SubscriptionID(b.nextID.Add(1)),
		eventType: eventType,
		handler:   h,
		mailbox:   make(chan model.Event, b.mailboxSize),
	}
	b.slk.Lock()
	b.subs[eventType] = append(b.subs[eventType], sub)
	b.slk.Unlock()

	b.subsWg.Add(1)
	go b.runSubscription(sub)
	return sub.id
}

// SubscribeAll registers a handler receiving every event, eg for relays and audit logs.
func (b *Bus) SubscribeAll(h Handler) SubscriptionID {
	return b.Subscribe(allEvents, h)
}

// Unsubscribe removes a handler. Events already in its mailbox are still delivered.
func (b *Bus) Unsubscribe(eventType string, id SubscriptionID) bool {
	b.slk.Lock()
	defer b.slk.Unlock()
	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(s.mailbox)
			return true
		}
	}
	return false
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case evt := <-b.queue:
			b.fanout(evt)
		case <-b.closing:
			// drain what was admitted before close
			for {
				select {
				case evt := <-b.queue:
					b.fanout(evt)
				case <-b.ctx.Done():
					return
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) fanout(evt model.Event) {
	queueDepth.Set(float64(len(b.queue)))
	b.slk.RLock()
	defer b.slk.RUnlock()
	for _, key := range []string{evt.Type, allEvents} {
		for _, s := range b.subs[key] {
			select {
			case s.mailbox <- evt:
			case <-b.ctx.Done():
				b.logger.Error("event abandoned at shutdown", "type", evt.Type, "id", evt.EventID, "subscription", s.id)
				eventsDropped.WithLabelValues(evt.Type).Inc()
			}
		}
	}
}

func (b *Bus) runSubscription(sub *subscription) {
	defer b.subsWg.Done()
	for evt := range sub.mailbox {
		b.invoke(sub, evt)
	}
}

func (b *Bus) invoke(sub *subscription, evt model.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "type", evt.Type, "subscription", sub.id, "err", r)
			handlerErrors.WithLabelValues(evt.Type).Inc()
		}
	}()
	start := time.Now()
	if err := sub.handler(b.ctx, evt); err != nil {
		b.logger.Error("event handler failed", "type", evt.Type, "subscription", sub.id, "err", err)
		handlerErrors.WithLabelValues(evt.Type).Inc()
	}
	handlerDuration.Observe(time.Since(start).Seconds())
}

// Shutdown stops accepting events, drains the queue, and waits for handlers to finish, up to the context deadline. After the deadline the handler context is cancelled and the remaining events are abandoned.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.plk.Lock()
	if b.closed {
		b.plk.Unlock()
		return nil
	}
	b.closed = true
	b.plk.Unlock()
	defer b.cancel()

	var drainErr error
	if b.started.Load() {
		close(b.closing)
		select {
		case <-b.done:
		case <-ctx.Done():
			b.cancel()
			<-b.done
			b.logger.Warn("event bus drain timed out", "remaining", len(b.queue))
			drainErr = fmt.Errorf("draining event queue: %w", ctx.Err())
		}
	}

	b.slk.Lock()
	for key, subs := range b.subs {
		for _, s := range subs {
			close(s.mailbox)
		}
		delete(b.subs, key)
	}
	b.slk.Unlock()
	if drainErr != nil {
		return drainErr
	}

	finished := make(chan struct{})
	go func() {
		b.subsWg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		b.logger.Warn("event handlers did not finish before shutdown deadline")
		return fmt.Errorf("waiting for event handlers: %w", ctx.Err())
	}
}
