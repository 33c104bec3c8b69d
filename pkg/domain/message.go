package domain

import "fmt"

// Message is an inbound protocol event (request, reply, timeout or internal
// event) addressed to a chain.
type Message interface {
	// ChainID returns the numeric id of the chain this message belongs to.
	ChainID() uint64

	// IsExternal reports whether the chain id was allocated by a remote peer.
	IsExternal() bool

	// InitialStep returns the Step that starts a fresh chain for this message.
	// Message types that cannot start a chain return ErrNotAnInitialMessage.
	InitialStep(env Env) (Step, error)

	// Drop releases resources held by a message that is discarded unconsumed.
	Drop(env Env)
}

// Describe returns a short human-readable description of a message.
func Describe(msg Message) string {
	if msg == nil {
		return "<nil>"
	}
	if s, ok := msg.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T@%s", msg, ChainOf(msg))
}
