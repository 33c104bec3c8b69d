package domain

// ResultKind tags the outcome of Step.Receive.
type ResultKind int

const (
	// ResultContinue adopts Next as the current step.
	ResultContinue ResultKind = iota
	// ResultTerminate ends the chain.
	ResultTerminate
	// ResultTransition adopts Next and then handles Queued.
	ResultTransition
)

// Result is the transition produced by a Step for one message.
type Result struct {
	Kind ResultKind
	Next Step

	// Queued messages follow a ResultTransition. When Deliver is set they are
	// fed, in order, to Next before the originating receive returns; otherwise
	// they are dropped.
	Queued  []Message
	Deliver bool
}

// Continue moves the chain to next. Returning the receiving step itself is a
// self-transition. A nil next is equivalent to Terminate.
func Continue(next Step) Result {
	if next == nil {
		return Terminate()
	}
	return Result{Kind: ResultContinue, Next: next}
}

// Terminate ends the chain.
func Terminate() Result {
	return Result{Kind: ResultTerminate}
}

// TransitionWith moves the chain to next and injects msgs into the same
// dispatch pass (deliver) or discards them (!deliver).
func TransitionWith(next Step, deliver bool, msgs ...Message) Result {
	return Result{Kind: ResultTransition, Next: next, Queued: msgs, Deliver: deliver}
}

// Alive reports whether the chain survives this result.
func (r Result) Alive() bool {
	return r.Kind != ResultTerminate && r.Next != nil
}
