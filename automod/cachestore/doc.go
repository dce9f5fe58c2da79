// Automod component for caching per-chat policy snapshots with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine reads a snapshot for every message, so this keeps load off the authoritative policy store.
package cachestore
