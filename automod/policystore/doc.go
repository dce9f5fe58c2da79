// Per-chat moderation policy and blacklist storage, with a cached resolver used by the engine.
package policystore
