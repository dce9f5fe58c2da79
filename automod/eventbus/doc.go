// In-process event bus for moderation events, with optional relays to redis and kafka.
package eventbus
