package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"
)

// DefaultNotifyTTL is how long a moderation notice stays in the chat before it is removed.
const DefaultNotifyTTL = 30 * time.Second

type Publisher interface {
	Publish(evt model.Event) bool
}

// Applies verdicts via the chat platform, and publishes resulting events.
type Executor struct {
	Platform ChatPlatform
	Bus      Publisher
	Logger   *slog.Logger
	// send a short-lived notice to the chat for each user-level action
	Notify    bool
	NotifyTTL time.Duration
	Clock     func() time.Time

	lk      sync.Mutex
	pending map[MessageHandle]*time.Timer
	closed  bool
}

func NewExecutor(platform ChatPlatform, bus Publisher, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		Platform:  platform,
		Bus:       bus,
		Logger:    logger.With("component", "enforce"),
		Notify:    true,
		NotifyTTL: DefaultNotifyTTL,
		pending:   make(map[MessageHandle]*time.Timer),
	}
}

func (ex *Executor) now() time.Time {
	if ex.Clock != nil {
		return ex.Clock()
	}
	return time.Now()
}

// Apply deletes the offending message (if requested), performs the user-level action, and publishes the detection and action events.
//
// A failed delete does not stop enforcement; both events carry deleteFailed. A failed user-level action is returned as an *EnforcementError, after the events (flagged with actionFailed) have been published.
func (ex *Executor) Apply(ctx context.Context, v model.Verdict, msg *model.MessageEvent) error {
	if v.IsNone() {
		return nil
	}
	logger := ex.Logger.With("chat", msg.ChatID, "user", msg.UserID, "msg", msg.MessageID, "action", v.Action)

	deleteFailed := false
	if v.ShouldDeleteMessage {
		if err := ex.Platform.DeleteMessage(ctx, msg.ChatID, msg.MessageID); err != nil {
			// message may already be gone
			logger.Warn("failed to delete message", "err", err)
			platformErrors.WithLabelValues("delete").Inc()
			deleteFailed = true
		}
	}
	if v.Banned {
		return nil
	}

	var actionErr error
	switch v.Action {
	case model.ActionMute:
		until := ex.now().Add(v.MuteDuration)
		if err := ex.Platform.Restrict(ctx, msg.ChatID, msg.UserID, Muted, &until); err != nil {
			actionErr = err
		}
	case model.ActionKick:
		if err := ex.Platform.Kick(ctx, msg.ChatID, msg.UserID); err != nil {
			actionErr = err
		}
	case model.ActionBan:
		if err := ex.Platform.Ban(ctx, msg.ChatID, msg.UserID); err != nil {
			actionErr = err
		}
	}
	if actionErr != nil {
		logger.Error("failed to apply moderation action", "err", actionErr)
		platformErrors.WithLabelValues(v.Action.String()).Inc()
		actionErr = &EnforcementError{Action: v.Action, ChatID: msg.ChatID, UserID: msg.UserID, Err: actionErr}
	}
	actionsApplied.WithLabelValues(v.Action.String(), fmt.Sprint(actionErr == nil)).Inc()

	detection := detectionEvent(v, msg)
	if deleteFailed {
		detection.Payload["deleteFailed"] = true
	}
	ex.publish(logger, detection)
	if evt, ok := actionEvent(v, msg, actionErr != nil); ok {
		if deleteFailed {
			evt.Payload["deleteFailed"] = true
		}
		ex.publish(logger, evt)
	}

	if ex.Notify && actionErr == nil {
		ex.notify(ctx, logger, v, msg)
	}
	return actionErr
}

func (ex *Executor) publish(logger *slog.Logger, evt model.Event) {
	if ex.Bus == nil {
		return
	}
	if !ex.Bus.Publish(evt) {
		logger.Warn("event bus rejected event", "type", evt.Type, "err", model.ErrQueueSaturated)
	}
}

func detectionEvent(v model.Verdict, msg *model.MessageEvent) model.Event {
	if v.Cause == model.CauseFlood {
		return model.NewEvent(model.EventFloodDetected, msg.ChatID, msg.UserID, map[string]any{
			"messageId":         msg.MessageID,
			"messagesPerSecond": v.MessagesPerSecond,
			"warningCount":      v.WarningCount,
		})
	}
	return model.NewEvent(model.EventSpamDetected, msg.ChatID, msg.UserID, map[string]any{
		"messageId": msg.MessageID,
		"spamType":  v.SpamType,
		"reason":    v.Reason,
	})
}

func actionEvent(v model.Verdict, msg *model.MessageEvent, failed bool) (model.Event, bool) {
	var typ string
	payload := map[string]any{"reason": v.Reason}
	switch v.Action {
	case model.ActionWarn:
		typ = model.EventUserWarned
		payload["warningCount"] = v.WarningCount
	case model.ActionMute:
		typ = model.EventUserMuted
		payload["duration"] = int64(v.MuteDuration.Seconds())
	case model.ActionKick:
		typ = model.EventUserKicked
	case model.ActionBan:
		typ = model.EventUserBanned
		payload["global"] = false
	default:
		return model.Event{}, false
	}
	if failed {
		payload["actionFailed"] = true
	}
	return model.NewEvent(typ, msg.ChatID, msg.UserID, payload), true
}

func noticeText(v model.Verdict, userID int64) string {
	switch v.Action {
	case model.ActionWarn:
		return fmt.Sprintf("⚠️ User %d, please don't spam! Reason: %s", userID, v.Reason)
	case model.ActionMute:
		return fmt.Sprintf("🔇 User %d has been muted for %d minutes. Reason: %s", userID, int(v.MuteDuration.Minutes()), v.Reason)
	case model.ActionKick:
		return fmt.Sprintf("👢 User %d has been kicked. Reason: %s", userID, v.Reason)
	case model.ActionBan:
		return fmt.Sprintf("🚫 User %d has been banned. Reason: %s", userID, v.Reason)
	}
	return ""
}

func (ex *Executor) notify(ctx context.Context, logger *slog.Logger, v model.Verdict, msg *model.MessageEvent) {
	text := noticeText(v, msg.UserID)
	if text == "" {
		return
	}
	h, err := ex.Platform.SendMessage(ctx, msg.ChatID, text)
	if err != nil {
		logger.Warn("failed to send moderation notice", "err", err)
		platformErrors.WithLabelValues("notify").Inc()
		return
	}

	ex.lk.Lock()
	defer ex.lk.Unlock()
	if ex.closed {
		return
	}
	ex.pending[h] = time.AfterFunc(ex.NotifyTTL, func() {
		ex.lk.Lock()
		delete(ex.pending, h)
		ex.lk.Unlock()
		ex.removeNotice(h)
	})
}

func (ex *Executor) removeNotice(h MessageHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ex.Platform.DeleteMessage(ctx, h.ChatID, h.MessageID); err != nil {
		ex.Logger.Warn("failed to delete moderation notice", "chat", h.ChatID, "msg", h.MessageID, "err", err)
	}
}

// PendingNotices is the number of notices waiting for scheduled removal.
func (ex *Executor) PendingNotices() int {
	ex.lk.Lock()
	defer ex.lk.Unlock()
	return len(ex.pending)
}

// Close cancels the removal timers and removes the pending notices right away.
func (ex *Executor) Close() {
	ex.lk.Lock()
	ex.closed = true
	var flush []MessageHandle
	for h, t := range ex.pending {
		if t.Stop() {
			flush = append(flush, h)
		}
		delete(ex.pending, h)
	}
	ex.lk.Unlock()

	for _, h := range flush {
		ex.removeNotice(h)
	}
}
