// Package sinks implements catch-all event handlers: structured logging,
// Prometheus counters and external publication. Each sink satisfies
// events.Handler and is safe for concurrent use.
package sinks
