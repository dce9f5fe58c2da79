package platform

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mychatmanager/chatmod/automod/enforce"
)

// LogPlatform performs no platform calls, it only logs them. Useful for dry-run deployments.
type LogPlatform struct {
	Logger *slog.Logger

	nextID atomic.Int64
}

var _ enforce.ChatPlatform = (*LogPlatform)(nil)

func NewLogPlatform(logger *slog.Logger) *LogPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPlatform{Logger: logger.With("component", "platform", "dryrun", true)}
}

func (p *LogPlatform) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	p.Logger.Info("would delete message", "chat", chatID, "msg", messageID)
	return nil
}

func (p *LogPlatform) Restrict(ctx context.Context, chatID, userID int64, perms enforce.Permissions, until *time.Time) error {
	p.Logger.Info("would restrict member", "chat", chatID, "user", userID, "canSend", perms.CanSendMessages, "until", until)
	return nil
}

func (p *LogPlatform) Kick(ctx context.Context, chatID, userID int64) error {
	p.Logger.Info("would kick member", "chat", chatID, "user", userID)
	return nil
}

func (p *LogPlatform) Ban(ctx context.Context, chatID, userID int64) error {
	p.Logger.Info("would ban member", "chat", chatID, "user", userID)
	return nil
}

func (p *LogPlatform) SendMessage(ctx context.Context, chatID int64, text string) (enforce.MessageHandle, error) {
	p.Logger.Info("would send message", "chat", chatID, "text", text)
	return enforce.MessageHandle{ChatID: chatID, MessageID: p.nextID.Add(1)}, nil
}

func (p *LogPlatform) Unban(ctx context.Context, chatID, userID int64) error {
	p.Logger.Info("would unban member", "chat", chatID, "user", userID)
	return nil
}
