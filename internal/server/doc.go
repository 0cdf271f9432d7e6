// Package server provides the optional HTTP surface of the collector.
//
// The server exposes:
//
//   - Prometheus metrics: "/metrics" for dimension gauges and self-metrics
//   - REST API: JSON endpoint at "/api/readings" for the latest chart samples
//   - Server-Sent Events: a stream of every commit at "/api/sse"
//   - Liveness: "/healthz"
//   - Dashboard: the readings page at "/", when assets are supplied
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
