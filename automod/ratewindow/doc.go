// Automod component for per-key sliding windows of timestamps, used for rate-based (flood) detection.
//
// Includes an interface and implementations using redis and in-process memory.
package ratewindow
