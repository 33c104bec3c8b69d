package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition EventType = "transition"
	EventEvict      EventType = "evict"
	EventDrop       EventType = "drop"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Chain     ChainID   `json:"chain"`
}

// TransitionEvent is emitted after a chain processed one message.
type TransitionEvent struct {
	EventBase
	Message string `json:"message"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Alive   bool   `json:"alive"`
	Failure string `json:"failure,omitempty"`
}

// EvictEvent is emitted when an idle chain is discarded for capacity.
type EvictEvent struct {
	EventBase
	Step     string   `json:"step"`
	Priority Priority `json:"priority"`
}

// DropEvent is emitted when a message is discarded unconsumed.
type DropEvent struct {
	EventBase
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// Drop reasons.
const (
	DropUnacceptable = "unacceptable"
	DropNotInitial   = "not_initial"
	DropDiscarded    = "discarded"
	DropNoStep       = "no_step"
)

// LifecycleHooks defines callbacks for dispatch observability. Hooks run on
// the goroutine driving the chain and must not block.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnEvict      func(context.Context, *EvictEvent)
	OnDrop       func(context.Context, *DropEvent)
}
