package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AuditEvent struct {
	ID        uint   `gorm:"primaryKey"`
	EventID   string `gorm:"uniqueIndex"`
	Type      string `gorm:"index"`
	ChatID    int64  `gorm:"index:idx_audit_chat_user"`
	UserID    int64  `gorm:"index:idx_audit_chat_user"`
	Payload   string
	Timestamp time.Time `gorm:"index"`
	CreatedAt time.Time
}

// GormSink persists every event it handles to the audit_events table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&AuditEvent{}); err != nil {
		return nil, err
	}
	return &GormSink{db: db}, nil
}

func (s *GormSink) Handle(ctx context.Context, evt model.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return err
	}
	row := AuditEvent{
		EventID:   evt.EventID,
		Type:      evt.Type,
		ChatID:    evt.ChatID,
		UserID:    evt.UserID,
		Payload:   string(payload),
		Timestamp: evt.Timestamp,
	}
	// relays may redeliver; the event ID makes this idempotent
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// Recent returns the newest events for a chat member, newest first.
func (s *GormSink) Recent(ctx context.Context, chatID, userID int64, limit int) ([]AuditEvent, error) {
	var rows []AuditEvent
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
