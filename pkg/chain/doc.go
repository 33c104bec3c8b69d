/*
Package chain implements the sequential engine that drives one chain through its steps.

A Chain owns the current Step for a chain id and feeds it one message at a time.
It creates the initial step from the first message, applies the Result returned by
each receive, cascades queued messages from explicit transitions, and contains every
failure a step can raise so a single faulty step never wedges the chain.

Aggregate is a Step that multiplexes several independent sub-chains under one id.

Chains are safe to call from multiple goroutines, but the dispatcher is expected to
serialise access per chain id; the internal mutex only guards against misuse.
*/
package chain
