/*
Package dispatch implements the chain registry: the concurrent front door that
routes every inbound message to its chain.

# Execution model

There is no dispatch loop. Any goroutine may call Handle. The first caller to
find a chain idle claims it and drains the chain's queue on its own goroutine;
callers arriving while the chain is claimed enqueue their message and return
immediately. This guarantees one goroutine inside a chain's step logic at a
time, FIFO order per chain, and no goroutine ever waits on another.

# Capacity

Idle chains are kept in a priority index. When there are more idle chains than
the configured capacity, the lowest ranked ones are evicted: lower priority
first, and among equal priority the one idle the longest. Evicted chains get
exactly one Lost call.

# Usage

	d := dispatch.New(
		dispatch.WithCapacity(10000),
		dispatch.WithLogger(logger),
	)

	if !d.HandleFast(env, msg) {
		pool.Submit(func() { d.Handle(env, msg) })
	}
*/
package dispatch
