// Package api hosts the operational HTTP surface of the collector. Routes:
//   - GET /healthz for liveness probes.
//   - GET /readyz, which pings the store and answers 503 when it is down.
//   - GET /metrics for Prometheus scraping.
//
// Subscription management and feed reads are exposed through the CLI; this
// server carries no user-facing routes.
package api
