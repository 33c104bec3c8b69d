/*
Package weft is the chain dispatch core of a peer-to-peer overlay node.

Every inbound protocol event is a Message addressed to a chain: a 64-bit id
plus a flag telling whether the id was allocated locally or by a remote peer.
A chain is a state machine whose current Step consumes one message at a time
and returns the next Step. The node guarantees that a chain's steps never run
concurrently, that messages for one chain are processed in arrival order, and
that memory stays bounded by evicting the least valuable idle chains.

# Concept

Protocol code supplies the steps. The first message of a chain builds its
initial step; later messages are fed to whatever step is current. A step
answers with a Result:

  - domain.Continue(next) adopts next (possibly itself);
  - domain.Terminate() ends the chain;
  - domain.TransitionWith(next, true, msgs...) adopts next and feeds msgs to it
    before the original delivery returns.

Steps usually route messages with a domain.Table, which turns "no handler for
this type" into domain.ErrUnacceptableMessage: the message is dropped and the
chain keeps its step.

# Usage

	node, err := weft.New(
		weft.WithCapacity(5000),
		weft.WithHistory(16),
		weft.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	prober := probe.New(transport)
	node.Handle(prober.Query(42, "peer-a"))

	// From a network goroutine that must not block:
	pump := weft.NewPump(node)
	go pump.Run(ctx)
	_ = pump.Submit(ctx, probe.NewReply(42, "peer-a", "pong"))

Handle never blocks on another chain's work: if the chain is busy the message
is queued and the goroutine already driving the chain processes it.
*/
package weft
