// Per-user escalation state machine (clean, warned, muted, banned) and its storage.
//
// Includes an interface and implementations using redis and in-process memory.
package escalation
