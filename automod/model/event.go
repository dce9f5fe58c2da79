package model

import (
	"time"

	"github.com/google/uuid"
)

// event types
const (
	EventSpamDetected    = "spam:detected"
	EventFloodDetected   = "flood:detected"
	EventUserWarned      = "user:warned"
	EventUserMuted       = "user:muted"
	EventUserKicked      = "user:kicked"
	EventUserBanned      = "user:banned"
	EventUserUnmuted     = "user:unmuted"
	EventUserUnbanned    = "user:unbanned"
	EventWarningsReset   = "warnings:reset"
	EventSettingsUpdated = "chat:settings_updated"
)

// Event is an immutable notification fanned out by the event bus.
type Event struct {
	Type      string         `json:"type"`
	ChatID    int64          `json:"chatId"`
	UserID    int64          `json:"userId"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
	EventID   string         `json:"eventId"`
}

func NewEvent(typ string, chatID, userID int64, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["chatId"] = chatID
	payload["userId"] = userID
	return Event{
		Type:      typ,
		ChatID:    chatID,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now(),
		EventID:   uuid.NewString(),
	}
}
