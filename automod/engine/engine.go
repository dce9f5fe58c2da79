package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mychatmanager/chatmod/automod/cachestore"
	"github.com/mychatmanager/chatmod/automod/classify"
	"github.com/mychatmanager/chatmod/automod/escalation"
	"github.com/mychatmanager/chatmod/automod/flood"
	"github.com/mychatmanager/chatmod/automod/model"
)

type ConfigSource interface {
	Snapshot(ctx context.Context, chatID int64) (cachestore.Snapshot, error)
}

// runtime for evaluating messages against chat policy, and managing per-user state.
//
// Evaluate performs no enforcement; it only reads configuration and mutates detector and escalation state. Callers must serialize calls per (chat, user).
type Engine struct {
	Logger     *slog.Logger
	Config     ConfigSource
	Classifier *classify.Classifier
	Flood      *flood.Detector
	Escalation *escalation.Escalator
	// defaults to time.Now; used when a message carries no timestamp
	Clock func() time.Time
}

func (eng *Engine) now(msg *model.MessageEvent) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	if eng.Clock != nil {
		return eng.Clock()
	}
	return time.Now()
}

// Evaluate returns the single verdict for a message.
func (eng *Engine) Evaluate(ctx context.Context, msg *model.MessageEvent) (verdict model.Verdict) {
	start := time.Now()
	logger := eng.Logger.With("chat", msg.ChatID, "user", msg.UserID, "msg", msg.MessageID)

	// similar to an HTTP server, we want to recover any panics from rule execution
	defer func() {
		if r := recover(); r != nil {
			logger.Error("moderation evaluation exception", "err", r)
			evaluateErrorCount.WithLabelValues("panic").Inc()
			verdict = model.NoneVerdict()
		}
		evaluateDuration.Observe(time.Since(start).Seconds())
		evaluateCount.WithLabelValues(verdict.Action.String()).Inc()
	}()

	if !msg.Moderatable() {
		return model.NoneVerdict()
	}
	now := eng.now(msg)

	snap, err := eng.Config.Snapshot(ctx, msg.ChatID)
	if err != nil {
		// snapshot is still usable, with defaults standing in for what failed
		logger.Warn("moderation config degraded, using defaults", "err", err)
		evaluateErrorCount.WithLabelValues("config").Inc()
	}
	policy := snap.Policy

	banned, err := eng.Escalation.Observe(ctx, msg.ChatID, msg.UserID, now)
	if err != nil {
		logger.Warn("failed to observe user activity", "err", err)
		evaluateErrorCount.WithLabelValues("escalation").Inc()
	}
	if banned {
		logger.Info("message from banned user")
		return model.Verdict{
			Action:              model.ActionNone,
			Reason:              "user is banned",
			ShouldDeleteMessage: true,
			Banned:              true,
		}
	}

	var cause *model.Cause
	if policy.AntiSpamEnabled {
		sv := eng.Classifier.Classify(msg, policy, snap.Blacklist)
		cause = model.SpamCause(sv)
	}
	// a message already counted as spam is not also counted as flood
	if cause == nil && policy.AntiFloodEnabled {
		fv := eng.Flood.Check(ctx, msg, now, policy)
		cause = model.FloodCause(fv)
	}
	if cause == nil {
		return model.NoneVerdict()
	}

	logger.Info("violation detected", "cause", cause.Kind, "type", cause.Type, "reason", cause.Reason, "action", policy.Action)
	v, err := eng.Escalation.Decide(ctx, msg.ChatID, msg.UserID, cause, policy, now)
	if err != nil {
		logger.Error("failed to commit escalation state", "err", err)
		evaluateErrorCount.WithLabelValues("escalation").Inc()
		if errors.Is(err, model.ErrInvalidPolicy) || v.Action == model.ActionNone {
			// the offending message is still removed
			v = model.Verdict{
				Reason:              cause.Reason,
				SpamType:            cause.Type,
				Cause:               cause.Kind,
				ShouldDeleteMessage: true,
			}
		}
	}
	return v
}
