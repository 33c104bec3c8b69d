package domain

// Table maps concrete message types to handlers of a Step type S. It is
// built once per Step type and shared by every instance. Expose it from the
// step through Routed (or forward Accepts to it) so aggregates route
// follow-up messages to the step instead of spawning a sub-chain for each.
//
//	var table = func() *domain.Table[*waiting] {
//		t := domain.NewTable[*waiting]()
//		domain.On(t, (*waiting).onReply)
//		domain.On(t, (*waiting).onTimeout)
//		return t
//	}()
type Table[S Step] struct {
	entries []tableEntry[S]
}

type tableEntry[S Step] struct {
	match func(Message) bool
	call  func(S, Env, Message) (Result, error)
}

// NewTable creates an empty dispatch table.
func NewTable[S Step]() *Table[S] {
	return &Table[S]{}
}

// On registers fn for messages of type M. Registrations are matched in order.
func On[S Step, M Message](t *Table[S], fn func(S, Env, M) (Result, error)) *Table[S] {
	t.entries = append(t.entries, tableEntry[S]{
		match: func(msg Message) bool {
			_, ok := msg.(M)
			return ok
		},
		call: func(s S, env Env, msg Message) (Result, error) {
			return fn(s, env, msg.(M))
		},
	})
	return t
}

// Accepts reports whether a handler is registered for msg.
func (t *Table[S]) Accepts(msg Message) bool {
	for _, e := range t.entries {
		if e.match(msg) {
			return true
		}
	}
	return false
}

// Dispatch calls the first handler registered for msg. Unregistered message
// types yield an UnacceptableMessageError.
func (t *Table[S]) Dispatch(s S, env Env, msg Message) (Result, error) {
	for _, e := range t.entries {
		if e.match(msg) {
			return e.call(s, env, msg)
		}
	}
	return Result{}, Unacceptable(s, msg)
}
