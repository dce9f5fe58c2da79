package model

import "time"

// CauseKind identifies which detector produced a Cause.
type CauseKind string

const (
	CauseSpam  CauseKind = "spam"
	CauseFlood CauseKind = "flood"
)

// spam types
const (
	SpamBlacklist = "blacklist"
	SpamPattern   = "pattern"
	SpamURLs      = "excessive_urls"
	SpamCaps      = "excessive_caps"
)

// flood types
const (
	FloodRate     = "flood"
	FloodForwards = "forwards"
	FloodSimilar  = "similar"
)

type SpamVerdict struct {
	IsSpam   bool
	SpamType string
	Reason   string
}

type FloodVerdict struct {
	IsFlood           bool
	FloodType         string
	MessagesPerSecond float64
	Reason            string
}

// Cause is a detected violation handed to the escalation policy.
type Cause struct {
	Kind   CauseKind
	Type   string
	Reason string
	// only set for flood causes
	MessagesPerSecond float64
}

func SpamCause(v SpamVerdict) *Cause {
	if !v.IsSpam {
		return nil
	}
	return &Cause{Kind: CauseSpam, Type: v.SpamType, Reason: v.Reason}
}

func FloodCause(v FloodVerdict) *Cause {
	if !v.IsFlood {
		return nil
	}
	return &Cause{Kind: CauseFlood, Type: v.FloodType, Reason: v.Reason, MessagesPerSecond: v.MessagesPerSecond}
}

// Verdict is the single moderation decision for one message.
type Verdict struct {
	Action              Action
	Reason              string
	SpamType            string
	ShouldDeleteMessage bool
	// zero unless Action is ActionMute
	MuteDuration time.Duration

	Cause             CauseKind
	MessagesPerSecond float64
	WarningCount      uint
	// user is already banned; the message is dropped without a new consequence
	Banned bool
}

func (v Verdict) IsNone() bool {
	return v.Action == ActionNone && !v.ShouldDeleteMessage && !v.Banned
}

func NoneVerdict() Verdict {
	return Verdict{Action: ActionNone}
}
