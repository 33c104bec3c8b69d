// Package probe is a small request/reply protocol built on weft chains.
//
// A Query starts a chain that sends one probe to a target and waits for its
// Reply. Timeouts re-send the probe until the attempt budget is spent. A
// Fanout multiplexes several probes under a single chain id with an
// aggregating step. Every probe ends with exactly one Outcome.
package probe
