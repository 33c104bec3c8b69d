/*
Package observability provides metrics and lifecycle hooks for the dispatch core.

Metrics exports the live-chain counter and dispatch/eviction counters through
Prometheus. Hooks adapts Metrics and a structured logger into domain.LifecycleHooks
so chain transitions, drops and evictions are counted and audited.
*/
package observability
