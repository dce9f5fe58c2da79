// Moderation engine for group chats: spam and flood detection with warn, mute, kick, and ban escalation.
//
// Inbound messages enter through a pipeline.Coordinator, which serializes decisions per (chat, user), runs the engine.Engine, applies the verdict via enforce.Executor, and publishes state changes on the eventbus. Per-user state lives in ratewindow (message timestamps) and escalation (warning records), each with in-memory and Redis implementations.
//
// See `cmd/chatmod` for a daemon built on this package.
package automod
