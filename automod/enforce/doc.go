// Enforcement of moderation verdicts against the chat platform.
package enforce
