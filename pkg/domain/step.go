package domain

// Step is a single state of a chain. A Step is only ever driven by one
// goroutine at a time; it needs no locking of its own.
type Step interface {
	// Name is a human-readable label used in diagnostics.
	Name() string

	// Priority is consulted when the chain is idle and the dispatcher is over
	// capacity.
	Priority() Priority

	// Receive advances the state machine by exactly one message.
	// Returning ErrUnacceptableMessage (or an error wrapping it) drops the
	// message and keeps this Step current. Any other error terminates the chain.
	Receive(env Env, msg Message) (Result, error)

	// Lost is called once when the chain is evicted or force-terminated while
	// this Step is current.
	Lost(env Env)

	// CanRunFast reports whether msg may be handled synchronously on the
	// caller's goroutine. It must be cheap and free of side effects.
	CanRunFast(env Env, msg Message) bool
}

// Acceptor is implemented by Steps that can tell in advance whether they
// handle a message. Aggregating steps use it to route to sub-chains.
type Acceptor interface {
	Accepts(msg Message) bool
}

// Routed is implemented by Steps that dispatch through a Table. Returning the
// table from Routes lets aggregating steps route by its registered message
// types without a hand-written Accepts.
type Routed interface {
	Routes() Acceptor
}

// Accepts reports whether s declares that it handles msg. An Acceptor
// answers for itself; a Routed step accepts what its table handles. Any other
// step accepts nothing, so an Aggregate starts a new sub-chain for every
// message sent its way.
func Accepts(s Step, msg Message) bool {
	if s == nil {
		return false
	}
	if a, ok := s.(Acceptor); ok {
		return a.Accepts(msg)
	}
	if r, ok := s.(Routed); ok {
		if routes := r.Routes(); routes != nil {
			return routes.Accepts(msg)
		}
	}
	return false
}

// BaseStep provides the default Step behaviour. Embed it and implement Name
// and Receive.
type BaseStep struct {
	Chain ChainID
}

// Priority defaults to PriorityOperational.
func (BaseStep) Priority() Priority { return PriorityOperational }

// Lost does nothing by default.
func (BaseStep) Lost(Env) {}

// CanRunFast defaults to false.
func (BaseStep) CanRunFast(Env, Message) bool { return false }

// ChainID returns the chain the step belongs to.
func (b BaseStep) ChainID() ChainID { return b.Chain }
