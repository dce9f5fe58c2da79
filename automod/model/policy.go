package model

import (
	"encoding/json"
	"fmt"
)

// Action is the configured or decided user-level consequence.
type Action int

const (
	ActionNone Action = iota
	ActionWarn
	ActionMute
	ActionKick
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionWarn:
		return "warn"
	case ActionMute:
		return "mute"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "none", "":
		return ActionNone, nil
	case "warn":
		return ActionWarn, nil
	case "mute":
		return ActionMute, nil
	case "kick":
		return ActionKick, nil
	case "ban":
		return ActionBan, nil
	}
	return ActionNone, fmt.Errorf("%w: unknown action %q", ErrInvalidPolicy, s)
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ChatPolicy is an immutable per-chat snapshot of moderation settings.
type ChatPolicy struct {
	MessagesPerMinute    uint   `json:"messagesPerMinute"`
	SimilarMessageLimit  uint   `json:"similarMessageLimit"`
	MaxForwardsPerMinute uint   `json:"maxForwardsPerMinute"`
	URLLimit             uint   `json:"urlLimit"`
	Action               Action `json:"action"`
	MaxWarnings          uint   `json:"maxWarnings"`
	AntiSpamEnabled      bool   `json:"antiSpamEnabled"`
	AntiFloodEnabled     bool   `json:"antiFloodEnabled"`
}

// DefaultPolicy is the conservative built-in policy, also used when the policy store is unavailable.
func DefaultPolicy() ChatPolicy {
	return ChatPolicy{
		MessagesPerMinute:    10,
		SimilarMessageLimit:  3,
		MaxForwardsPerMinute: 5,
		URLLimit:             3,
		Action:               ActionWarn,
		MaxWarnings:          3,
		AntiSpamEnabled:      true,
		AntiFloodEnabled:     true,
	}
}

// Validate checks the administrator-facing ranges for each setting.
func (p ChatPolicy) Validate() error {
	if p.MessagesPerMinute < 5 || p.MessagesPerMinute > 50 {
		return fmt.Errorf("%w: messagesPerMinute must be between 5 and 50", ErrInvalidPolicy)
	}
	if p.SimilarMessageLimit < 2 || p.SimilarMessageLimit > 10 {
		return fmt.Errorf("%w: similarMessageLimit must be between 2 and 10", ErrInvalidPolicy)
	}
	if p.MaxForwardsPerMinute < 3 || p.MaxForwardsPerMinute > 20 {
		return fmt.Errorf("%w: maxForwardsPerMinute must be between 3 and 20", ErrInvalidPolicy)
	}
	if p.URLLimit < 1 || p.URLLimit > 10 {
		return fmt.Errorf("%w: urlLimit must be between 1 and 10", ErrInvalidPolicy)
	}
	switch p.Action {
	case ActionWarn, ActionMute, ActionKick, ActionBan:
	default:
		return fmt.Errorf("%w: action must be one of warn, mute, kick, ban", ErrInvalidPolicy)
	}
	return nil
}
