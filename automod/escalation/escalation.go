package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"
)

const (
	DefaultDebounce     = 300 * time.Second
	DefaultMuteDuration = 10 * time.Minute
)

// Maps a detected cause, the chat's configured action, and the user's history to a concrete verdict.
//
// Calls for one (chat, user) pair must be serialized by the caller.
type Escalator struct {
	Store        WarningStore
	Logger       *slog.Logger
	Debounce     time.Duration
	MuteDuration time.Duration
}

func NewEscalator(store WarningStore, logger *slog.Logger) *Escalator {
	if logger == nil {
		logger = slog.Default()
	}
	if store == nil {
		store = NewMemWarningStore()
	}
	return &Escalator{
		Store:        store,
		Logger:       logger.With("component", "escalation"),
		Debounce:     DefaultDebounce,
		MuteDuration: DefaultMuteDuration,
	}
}

func (e *Escalator) load(ctx context.Context, chatID, userID int64) (WarningRecord, error) {
	rec, ok, err := e.Store.Get(ctx, chatID, userID)
	if err != nil {
		return WarningRecord{}, fmt.Errorf("loading warning record: %w", err)
	}
	if !ok {
		rec = WarningRecord{State: StateClean}
	}
	return rec, nil
}

// Observe is called for every moderated message before detection. It refreshes activity, invalidates a cached mute (the user can post again, so the platform lifted it), and reports whether the user is held as banned. The debounce window is kept, so further violations inside it remain part of the same offense.
func (e *Escalator) Observe(ctx context.Context, chatID, userID int64, now time.Time) (bool, error) {
	rec, err := e.load(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if rec.State == StateBanned {
		return true, nil
	}
	if rec.State == StateMuted {
		e.Logger.Debug("clearing cached mute on new message", "chat", chatID, "user", userID)
		rec = invalidateMute(rec)
	}
	rec.LastSeen = now
	return false, e.Store.Put(ctx, chatID, userID, rec)
}

func invalidateMute(rec WarningRecord) WarningRecord {
	rec.MutedUntil = time.Time{}
	if rec.Count > 0 {
		rec.State = StateWarned
	} else {
		rec.State = StateClean
	}
	return rec
}

func clearMute(rec WarningRecord) WarningRecord {
	rec.RecentlyWarnedUntil = time.Time{}
	return invalidateMute(rec)
}

// Decide the verdict for a detected cause, and commit the resulting state.
func (e *Escalator) Decide(ctx context.Context, chatID, userID int64, cause *model.Cause, policy model.ChatPolicy, now time.Time) (model.Verdict, error) {
	if cause == nil {
		return model.NoneVerdict(), nil
	}
	rec, err := e.load(ctx, chatID, userID)
	if err != nil {
		return model.NoneVerdict(), err
	}

	v := model.Verdict{
		Reason:              cause.Reason,
		Cause:               cause.Kind,
		MessagesPerSecond:   cause.MessagesPerSecond,
		ShouldDeleteMessage: true,
	}
	if cause.Kind == model.CauseSpam {
		v.SpamType = cause.Type
	}

	switch policy.Action {
	case model.ActionWarn:
		if rec.recentlyWarned(now) {
			// repeat offense inside the debounce window; does not count towards maxWarnings
			v.Action = model.ActionMute
			v.MuteDuration = e.MuteDuration
			rec.State = StateMuted
			rec.MutedUntil = now.Add(e.MuteDuration)
			break
		}
		rec.Count++
		rec.RecentlyWarnedUntil = now.Add(e.Debounce)
		if policy.MaxWarnings > 0 && rec.Count >= policy.MaxWarnings {
			v.Action = model.ActionBan
			rec.State = StateBanned
			break
		}
		v.Action = model.ActionWarn
		rec.State = StateWarned
		if cause.Kind == model.CauseFlood && rec.Count == 1 {
			// first flood warning keeps the message
			v.ShouldDeleteMessage = false
		}
	case model.ActionMute:
		v.Action = model.ActionMute
		v.MuteDuration = e.MuteDuration
		rec.State = StateMuted
		rec.MutedUntil = now.Add(e.MuteDuration)
	case model.ActionKick:
		v.Action = model.ActionKick
	case model.ActionBan:
		v.Action = model.ActionBan
		rec.State = StateBanned
	default:
		return model.NoneVerdict(), fmt.Errorf("%w: unhandled action %s", model.ErrInvalidPolicy, policy.Action)
	}

	rec.LastReason = cause.Reason
	rec.LastSeen = now
	v.WarningCount = rec.Count
	if err := e.Store.Put(ctx, chatID, userID, rec); err != nil {
		return v, fmt.Errorf("saving warning record: %w", err)
	}
	escalationVerdicts.WithLabelValues(v.Action.String(), string(cause.Kind)).Inc()
	return v, nil
}

// ClearMute is called once an unmute is confirmed, so that stale debounce state does not block future warnings.
func (e *Escalator) ClearMute(ctx context.Context, chatID, userID int64) error {
	rec, ok, err := e.Store.Get(ctx, chatID, userID)
	if err != nil || !ok {
		return err
	}
	return e.Store.Put(ctx, chatID, userID, clearMute(rec))
}

// Unban lifts the banned state. The warning count is reset, since it is what triggered the ban.
func (e *Escalator) Unban(ctx context.Context, chatID, userID int64) error {
	rec, ok, err := e.Store.Get(ctx, chatID, userID)
	if err != nil || !ok {
		return err
	}
	rec.State = StateClean
	rec.Count = 0
	rec.RecentlyWarnedUntil = time.Time{}
	rec.MutedUntil = time.Time{}
	return e.Store.Put(ctx, chatID, userID, rec)
}

func (e *Escalator) ResetWarnings(ctx context.Context, chatID, userID int64) error {
	rec, ok, err := e.Store.Get(ctx, chatID, userID)
	if err != nil || !ok {
		return err
	}
	rec.Count = 0
	rec.RecentlyWarnedUntil = time.Time{}
	rec.LastReason = ""
	if rec.State == StateWarned {
		rec.State = StateClean
	}
	return e.Store.Put(ctx, chatID, userID, rec)
}

func (e *Escalator) Record(ctx context.Context, chatID, userID int64) (WarningRecord, error) {
	return e.load(ctx, chatID, userID)
}

func (e *Escalator) Sweep(ctx context.Context, inactiveSince time.Time) (int, error) {
	return e.Store.Sweep(ctx, inactiveSince)
}
