// Package http exposes read-only node diagnostics over HTTP: registry
// counters, per-chain descriptions, archived histories and Prometheus metrics.
package http
