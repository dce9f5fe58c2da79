// Entry point for inbound chat messages.
//
// A Coordinator serializes moderation decisions per (chat, user), applies the resulting verdicts, and tells the caller whether to stop routing the message. It also owns periodic cleanup of per-user state and the orderly shutdown of the pipeline.
package pipeline
