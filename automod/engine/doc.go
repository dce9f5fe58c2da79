// Moderation engine: combines classification, flood detection, and escalation into one verdict per message.
package engine
