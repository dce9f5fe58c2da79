package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"github.com/RussellLuo/slidingwindow"
)

// Route is the rate limit configuration for one command handler. A zero Limit disables limiting.
type Route struct {
	Name   string
	Limit  int64
	Window time.Duration
}

type routeLimiter struct {
	*slidingwindow.Limiter
	stop slidingwindow.StopFunc
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

func (c *Coordinator) routeLimiter(route *Route, chatID, userID int64) *routeLimiter {
	key := fmt.Sprintf("%s/%d/%d", route.Name, chatID, userID)

	c.routeLk.Lock()
	defer c.routeLk.Unlock()
	if rl, ok := c.limiters.Get(key); ok {
		return rl
	}
	lim, stop := slidingwindow.NewLimiter(route.Window, route.Limit, windowFunc)
	rl := &routeLimiter{Limiter: lim, stop: stop}
	c.limiters.Add(key, rl)
	return rl
}

// HandleRoute moderates a message addressed to a command route, then enforces the route's per-member rate limit.
//
// Result.Throttled is set when the member exceeded the limit; the caller should not invoke the route's handler in that case.
func (c *Coordinator) HandleRoute(ctx context.Context, route *Route, msg *model.MessageEvent) (Result, error) {
	res, err := c.Handle(ctx, msg)
	if err != nil || res.ShortCircuit {
		return res, err
	}
	if route == nil || route.Limit <= 0 || route.Window <= 0 {
		return res, nil
	}
	now := msg.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	if !c.routeLimiter(route, msg.ChatID, msg.UserID).AllowN(now, 1) {
		c.Logger.Info("route rate limit exceeded", "route", route.Name, "chat", msg.ChatID, "user", msg.UserID)
		routeThrottled.WithLabelValues(route.Name).Inc()
		res.Throttled = true
	}
	return res, nil
}

// DefaultRoutes are the rate limited command routes.
func DefaultRoutes() map[string]*Route {
	return map[string]*Route{
		"report": {Name: "report", Limit: 3, Window: time.Minute},
	}
}
