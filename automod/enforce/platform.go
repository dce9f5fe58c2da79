package enforce

import (
	"context"
	"fmt"
	"time"

	"github.com/mychatmanager/chatmod/automod/model"
)

// Chat member permissions used when restricting a user.
type Permissions struct {
	CanSendMessages       bool `json:"can_send_messages"`
	CanSendMediaMessages  bool `json:"can_send_media_messages"`
	CanSendOtherMessages  bool `json:"can_send_other_messages"`
	CanAddWebPagePreviews bool `json:"can_add_web_page_previews"`
}

// no permissions at all, ie a full mute
var Muted = Permissions{}

type MessageHandle struct {
	ChatID    int64
	MessageID int64
}

// Capabilities of the chat platform used for enforcement.
type ChatPlatform interface {
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	// until is nil for an indefinite restriction
	Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until *time.Time) error
	Kick(ctx context.Context, chatID, userID int64) error
	Ban(ctx context.Context, chatID, userID int64) error
	SendMessage(ctx context.Context, chatID int64, text string) (MessageHandle, error)
}

// A failed platform call for a user-level action. Matches model.ErrPlatformActionFailed with errors.Is.
type EnforcementError struct {
	Action model.Action
	ChatID int64
	UserID int64
	Err    error
}

func (e *EnforcementError) Error() string {
	return fmt.Sprintf("%s user %d in chat %d: %v", e.Action, e.UserID, e.ChatID, e.Err)
}

func (e *EnforcementError) Unwrap() error {
	return e.Err
}

func (e *EnforcementError) Is(target error) bool {
	return target == model.ErrPlatformActionFailed
}
