// Shared types for the moderation engine: inbound messages, chat policies, verdicts, and bus events.
package model
