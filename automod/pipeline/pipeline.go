package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mychatmanager/chatmod/automod/engine"
	"github.com/mychatmanager/chatmod/automod/enforce"
	"github.com/mychatmanager/chatmod/automod/eventbus"
	"github.com/mychatmanager/chatmod/automod/keylock"
	"github.com/mychatmanager/chatmod/automod/model"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer = otel.Tracer("pipeline")

const (
	DefaultSweepInterval = time.Minute
	// per-user state idle for longer than this is dropped by the sweeper
	DefaultRetention = time.Hour
)

type Result struct {
	// caller must stop any further processing (eg command routing) of the message
	ShortCircuit bool
	// a route limit was exceeded; only set by HandleRoute
	Throttled bool
	// the user-level action failed on the platform; the verdict's events were still published
	ActionFailed bool
	Verdict      model.Verdict
}

type Config struct {
	Logger        *slog.Logger
	LockTimeout   time.Duration
	SweepInterval time.Duration
	Retention     time.Duration
	// max number of (route, chat, user) limiters kept in memory
	RouteLimiterCapacity int
}

type Coordinator struct {
	Engine   *engine.Engine
	Executor *enforce.Executor
	Bus      *eventbus.Bus
	Locks    *keylock.KeyLock
	Logger   *slog.Logger

	sweepInterval time.Duration
	retention     time.Duration

	lk       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup

	routeLk  sync.Mutex
	limiters *lru.LRU[string, *routeLimiter]
}

func NewCoordinator(eng *engine.Engine, exec *enforce.Executor, bus *eventbus.Bus, config Config) *Coordinator {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}
	if config.RouteLimiterCapacity <= 0 {
		config.RouteLimiterCapacity = 100_000
	}
	return &Coordinator{
		Engine:        eng,
		Executor:      exec,
		Bus:           bus,
		Locks:         keylock.New(config.LockTimeout),
		Logger:        logger.With("component", "pipeline"),
		sweepInterval: config.SweepInterval,
		retention:     config.Retention,
		limiters: lru.NewLRU[string, *routeLimiter](config.RouteLimiterCapacity, func(_ string, rl *routeLimiter) {
			rl.stop()
		}, config.Retention),
	}
}

// enter registers an in-flight call, unless the coordinator is shutting down.
func (c *Coordinator) enter() bool {
	c.lk.RLock()
	defer c.lk.RUnlock()
	if c.closed {
		return false
	}
	c.inflight.Add(1)
	return true
}

// Handle moderates one inbound message.
//
// Returns model.ErrShuttingDown once Shutdown has begun, and an error wrapping model.ErrLockTimeout if the message was skipped because its (chat, user) lock could not be acquired in time. Platform failures during enforcement are not returned as errors; they are reported in Result.ActionFailed.
func (c *Coordinator) Handle(ctx context.Context, msg *model.MessageEvent) (res Result, err error) {
	if !c.enter() {
		messagesRejected.Inc()
		return Result{}, model.ErrShuttingDown
	}
	defer c.inflight.Done()

	ctx, span := tracer.Start(ctx, "Handle", trace.WithAttributes(
		attribute.Int64("chat", msg.ChatID),
		attribute.Int64("user", msg.UserID),
		attribute.Int64("msg", msg.MessageID),
	))
	defer span.End()
	logger := c.Logger.With("chat", msg.ChatID, "user", msg.UserID, "msg", msg.MessageID)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message pipeline exception", "err", r)
			err = fmt.Errorf("message pipeline exception: %v", r)
			res = Result{}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		handleDuration.Observe(time.Since(start).Seconds())
	}()

	unlock, err := c.Locks.Lock(ctx, keylock.MemberKey(msg.ChatID, msg.UserID))
	if err != nil {
		if errors.Is(err, model.ErrLockTimeout) {
			logger.Error("skipping message, member lock not acquired", "err", err)
			messagesSkipped.WithLabelValues("lock_timeout").Inc()
		} else {
			messagesSkipped.WithLabelValues("cancelled").Inc()
		}
		return Result{}, err
	}
	verdict := func() model.Verdict {
		defer unlock()
		return c.Engine.Evaluate(ctx, msg)
	}()

	res = Result{Verdict: verdict}
	if verdict.IsNone() {
		return res, nil
	}
	res.ShortCircuit = true
	span.SetAttributes(attribute.String("action", verdict.Action.String()), attribute.Bool("banned", verdict.Banned))

	if err := c.Executor.Apply(ctx, verdict, msg); err != nil {
		// already logged by the executor
		res.ActionFailed = true
		span.RecordError(err)
	}
	messagesShortCircuited.WithLabelValues(verdict.Action.String()).Inc()
	return res, nil
}

// Run periodically drops idle per-user state until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Sweep(ctx, time.Now())
		}
	}
}

// Sweep removes rate window entries, warning records, and member locks which have been idle since before the retention horizon.
func (c *Coordinator) Sweep(ctx context.Context, now time.Time) {
	cutoff := now.Add(-c.retention)
	logger := c.Logger.With("cutoff", cutoff)

	if c.Engine.Flood != nil && c.Engine.Flood.Windows != nil {
		n, err := c.Engine.Flood.Windows.Prune(ctx, cutoff)
		if err != nil {
			logger.Warn("failed to prune rate windows", "err", err)
		}
		sweptEntries.WithLabelValues("windows").Add(float64(n))
	}
	if c.Engine.Escalation != nil {
		n, err := c.Engine.Escalation.Sweep(ctx, cutoff)
		if err != nil {
			logger.Warn("failed to sweep warning records", "err", err)
		}
		sweptEntries.WithLabelValues("warnings").Add(float64(n))
	}
	n := c.Locks.Sweep(cutoff)
	sweptEntries.WithLabelValues("locks").Add(float64(n))
}

// Shutdown rejects new messages, waits for in-flight ones within ctx, cancels pending notices, and drains the event bus.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.lk.Lock()
	c.closed = true
	c.lk.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		c.Logger.Warn("shutdown grace expired with messages in flight")
		errs = append(errs, fmt.Errorf("waiting for in-flight messages: %w", ctx.Err()))
	}

	c.Executor.Close()
	if c.Bus != nil {
		if err := c.Bus.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	c.routeLk.Lock()
	c.limiters.Purge()
	c.routeLk.Unlock()
	return errors.Join(errs...)
}
