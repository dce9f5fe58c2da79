package pipeline

import (
	"context"
	"fmt"

	"github.com/mychatmanager/chatmod/automod/keylock"
	"github.com/mychatmanager/chatmod/automod/model"
)

type invalidator interface {
	Invalidate(ctx context.Context, chatID int64) error
}

type unbanner interface {
	Unban(ctx context.Context, chatID, userID int64) error
}

// withMember runs fn holding the member lock, so that administrative changes do not interleave with an evaluation for the same member.
func (c *Coordinator) withMember(ctx context.Context, chatID, userID int64, fn func() error) error {
	unlock, err := c.Locks.Lock(ctx, keylock.MemberKey(chatID, userID))
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (c *Coordinator) publish(evt model.Event) {
	if c.Bus == nil {
		return
	}
	if !c.Bus.Publish(evt) {
		c.Logger.Warn("event bus rejected event", "type", evt.Type, "chat", evt.ChatID, "err", model.ErrQueueSaturated)
	}
}

// ResetWarnings clears a member's warning count and similar-message history.
func (c *Coordinator) ResetWarnings(ctx context.Context, chatID, userID int64) error {
	err := c.withMember(ctx, chatID, userID, func() error {
		if err := c.Engine.Escalation.ResetWarnings(ctx, chatID, userID); err != nil {
			return err
		}
		c.Engine.Flood.Forget(chatID, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("resetting warnings: %w", err)
	}
	c.Logger.Info("warnings reset", "chat", chatID, "user", userID)
	c.publish(model.NewEvent(model.EventWarningsReset, chatID, userID, nil))
	return nil
}

// ConfirmUnmute is called once the platform reports a member's restriction was lifted.
func (c *Coordinator) ConfirmUnmute(ctx context.Context, chatID, userID int64) error {
	err := c.withMember(ctx, chatID, userID, func() error {
		return c.Engine.Escalation.ClearMute(ctx, chatID, userID)
	})
	if err != nil {
		return fmt.Errorf("confirming unmute: %w", err)
	}
	c.publish(model.NewEvent(model.EventUserUnmuted, chatID, userID, nil))
	return nil
}

// Unban lifts the ban on the platform, when the platform supports it, and clears the member's banned state.
func (c *Coordinator) Unban(ctx context.Context, chatID, userID int64) error {
	if u, ok := c.Executor.Platform.(unbanner); ok {
		if err := u.Unban(ctx, chatID, userID); err != nil {
			return fmt.Errorf("unbanning on platform: %w", err)
		}
	}
	err := c.withMember(ctx, chatID, userID, func() error {
		return c.Engine.Escalation.Unban(ctx, chatID, userID)
	})
	if err != nil {
		return fmt.Errorf("unbanning: %w", err)
	}
	c.Logger.Info("member unbanned", "chat", chatID, "user", userID)
	c.publish(model.NewEvent(model.EventUserUnbanned, chatID, userID, nil))
	return nil
}

// PolicyUpdated drops the cached policy for a chat after its settings changed.
func (c *Coordinator) PolicyUpdated(ctx context.Context, chatID int64) error {
	if inv, ok := c.Engine.Config.(invalidator); ok {
		if err := inv.Invalidate(ctx, chatID); err != nil {
			return fmt.Errorf("invalidating policy cache: %w", err)
		}
	}
	c.publish(model.NewEvent(model.EventSettingsUpdated, chatID, 0, nil))
	return nil
}
