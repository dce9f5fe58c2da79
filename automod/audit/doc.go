// Audit trail for moderation events: structured logs, persistence, and Slack notifications.
//
// Each type exposes a Handle method matching eventbus.Handler, so it can be subscribed directly to the bus.
package audit
