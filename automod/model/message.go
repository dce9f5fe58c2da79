package model

import (
	"strings"
	"time"
)

// MessageEvent is a single inbound chat message, as handed to the pipeline by the transport layer.
type MessageEvent struct {
	ChatID    int64     `json:"chatId"`
	UserID    int64     `json:"userId"`
	MessageID int64     `json:"messageId"`
	Text      string    `json:"text,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	IsForward bool      `json:"isForward"`
	IsCommand bool      `json:"isCommand"`
	Timestamp time.Time `json:"timestamp"`
}

// Content returns the message text, falling back to the media caption.
func (m *MessageEvent) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// Moderatable reports whether the message should go through moderation at all. Commands and messages with no text or caption are skipped.
func (m *MessageEvent) Moderatable() bool {
	if m.IsCommand || strings.HasPrefix(m.Text, "/") {
		return false
	}
	return m.Content() != ""
}
