package audit

import (
	"context"
	"log/slog"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Logger writes one structured log line per event.
type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With("component", "audit")}
}

func (l *Logger) Handle(ctx context.Context, evt model.Event) error {
	level := slog.LevelInfo
	for _, key := range []string{"actionFailed", "deleteFailed"} {
		if failed, _ := evt.Payload[key].(bool); failed {
			level = slog.LevelWarn
		}
	}
	attrs := []any{"type", evt.Type, "chat", evt.ChatID, "user", evt.UserID, "eventID", evt.EventID}
	if reason, ok := evt.Payload["reason"]; ok {
		attrs = append(attrs, "reason", reason)
	}
	l.logger.Log(ctx, level, "moderation event", attrs...)
	return nil
}
