package model

import "errors"

var (
	// policy or blacklist fetch failed
	ErrConfigUnavailable = errors.New("moderation config unavailable")
	// a delete/restrict/kick/ban call against the chat platform failed
	ErrPlatformActionFailed = errors.New("platform action failed")
	ErrQueueSaturated       = errors.New("event queue saturated")
	// per-key serialization could not be acquired in time
	ErrLockTimeout   = errors.New("moderation lock timeout")
	ErrShuttingDown  = errors.New("moderation pipeline shutting down")
	ErrInvalidPolicy = errors.New("invalid chat policy")
)
