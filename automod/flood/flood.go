package flood

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mychatmanager/chatmod/automod/helpers"
	"github.com/mychatmanager/chatmod/automod/model"
	"github.com/mychatmanager/chatmod/automod/ratewindow"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	BurstWindow   = 3 * time.Second
	MinuteWindow  = time.Minute
	ForwardWindow = time.Minute
	// lowest allowed message count within one burst window
	MinBurst = 5
	// upper bound on the similar-message lookback
	maxLookback = 10
)

// Flood detector, keyed by (chat, user).
//
// Check must not be called concurrently for the same (chat, user) pair: recording and evaluating are separate steps against shared state. Callers serialize per key.
type Detector struct {
	Windows ratewindow.WindowStore
	Logger  *slog.Logger

	// digests of the most recent message texts per key, newest last
	recent *expirable.LRU[string, []string]
}

type Config struct {
	Windows ratewindow.WindowStore
	Logger  *slog.Logger
	// number of (chat, user) pairs to remember recent texts for
	RecentCapacity int
	RecentTTL      time.Duration
}

func NewDetector(config Config) *Detector {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	windows := config.Windows
	if windows == nil {
		windows = ratewindow.NewMemWindowStore(ratewindow.DefaultRetention)
	}
	capacity := config.RecentCapacity
	if capacity <= 0 {
		capacity = 50_000
	}
	ttl := config.RecentTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Detector{
		Windows: windows,
		Logger:  logger.With("component", "flood"),
		recent:  expirable.NewLRU[string, []string](capacity, nil, ttl),
	}
}

// Largest number of messages allowed within BurstWindow, derived from the per-minute policy.
func BurstLimit(messagesPerMinute uint) int {
	scaled := int(math.Ceil(float64(messagesPerMinute) * BurstWindow.Seconds() / MinuteWindow.Seconds()))
	if scaled < MinBurst {
		return MinBurst
	}
	return scaled
}

// Records the message and checks for rate, forward, and repeated-text floods, in that order.
//
// Window store failures are logged and treated as "no flood".
func (d *Detector) Check(ctx context.Context, msg *model.MessageEvent, now time.Time, policy model.ChatPolicy) model.FloodVerdict {
	logger := d.Logger.With("chat", msg.ChatID, "user", msg.UserID)
	msgKey := ratewindow.MessageKey(msg.ChatID, msg.UserID)

	if err := d.Windows.Record(ctx, msgKey, now); err != nil {
		logger.Warn("failed to record message timestamp", "err", err)
		floodStoreErrors.Inc()
		return model.FloodVerdict{}
	}
	if msg.IsForward {
		if err := d.Windows.Record(ctx, ratewindow.ForwardKey(msg.ChatID, msg.UserID), now); err != nil {
			logger.Warn("failed to record forward timestamp", "err", err)
			floodStoreErrors.Inc()
		}
	}
	digest := textDigest(msg.Content())
	previous := d.pushText(msgKey, digest, policy.SimilarMessageLimit)

	if v, err := d.checkRate(ctx, msgKey, now, policy); err != nil {
		logger.Warn("failed to evaluate message rate", "err", err)
		floodStoreErrors.Inc()
	} else if v.IsFlood {
		return v
	}

	if msg.IsForward {
		n, err := d.Windows.CountWithin(ctx, ratewindow.ForwardKey(msg.ChatID, msg.UserID), now, ForwardWindow)
		if err != nil {
			logger.Warn("failed to evaluate forward rate", "err", err)
			floodStoreErrors.Inc()
		} else if n > int(policy.MaxForwardsPerMinute) {
			return model.FloodVerdict{
				IsFlood:           true,
				FloodType:         model.FloodForwards,
				MessagesPerSecond: float64(n) / ForwardWindow.Seconds(),
				Reason:            fmt.Sprintf("forwarding too many messages (%d in 1 minute)", n),
			}
		}
	}

	if repeated(previous, digest, policy.SimilarMessageLimit) {
		return model.FloodVerdict{
			IsFlood:   true,
			FloodType: model.FloodSimilar,
			Reason:    fmt.Sprintf("sending the same message repeatedly (%d times)", policy.SimilarMessageLimit+1),
		}
	}

	return model.FloodVerdict{}
}

func (d *Detector) checkRate(ctx context.Context, key string, now time.Time, policy model.ChatPolicy) (model.FloodVerdict, error) {
	recent, err := d.Windows.Within(ctx, key, now, BurstWindow)
	if err != nil {
		return model.FloodVerdict{}, err
	}
	if n := len(recent); n > BurstLimit(policy.MessagesPerMinute) {
		return model.FloodVerdict{
			IsFlood:           true,
			FloodType:         model.FloodRate,
			MessagesPerSecond: MessagesPerSecond(recent, now),
			Reason:            fmt.Sprintf("sending too many messages (%d messages in %s)", n, BurstWindow),
		}, nil
	}

	minute, err := d.Windows.Within(ctx, key, now, MinuteWindow)
	if err != nil {
		return model.FloodVerdict{}, err
	}
	if n := len(minute); n > int(policy.MessagesPerMinute) {
		return model.FloodVerdict{
			IsFlood:           true,
			FloodType:         model.FloodRate,
			MessagesPerSecond: MessagesPerSecond(minute, now),
			Reason:            fmt.Sprintf("sending too many messages (%d messages in 1 minute)", n),
		}, nil
	}
	return model.FloodVerdict{}, nil
}

// count / max(1s, now - oldest)
func MessagesPerSecond(recent []time.Time, now time.Time) float64 {
	if len(recent) == 0 {
		return 0
	}
	elapsed := now.Sub(recent[0]).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	return float64(len(recent)) / elapsed
}

// recent texts are remembered by hash only
func textDigest(text string) string {
	if text == "" {
		return ""
	}
	return helpers.HashOfString(text)
}

// Appends text to the key's recent list and returns the list as it was before
func (d *Detector) pushText(key, text string, lookback uint) []string {
	n := int(lookback)
	if n > maxLookback {
		n = maxLookback
	}
	prev, _ := d.recent.Get(key)
	next := append(append(make([]string, 0, len(prev)+1), prev...), text)
	if keep := max(n, 1); len(next) > keep {
		next = next[len(next)-keep:]
	}
	d.recent.Add(key, next)
	return prev
}

// true when each of the last n previous texts is exactly equal to text
func repeated(previous []string, text string, n uint) bool {
	if n == 0 || text == "" || len(previous) < int(n) {
		return false
	}
	for _, p := range previous[len(previous)-int(n):] {
		if p != text {
			return false
		}
	}
	return true
}

// Drops the recent-text history for a key, eg after an administrative reset
func (d *Detector) Forget(chatID, userID int64) {
	d.recent.Remove(ratewindow.MessageKey(chatID, userID))
}
