package domain

import (
	"errors"
	"fmt"
)

// ErrUnacceptableMessage is returned by a Step that does not handle the
// message it was given. The message is dropped and the chain is unchanged.
var ErrUnacceptableMessage = errors.New("unacceptable message")

// ErrNotAnInitialMessage is returned by Message.InitialStep when the message
// cannot start a chain.
var ErrNotAnInitialMessage = errors.New("not an initial message")

// UnacceptableMessageError names the step and message of a rejected dispatch.
type UnacceptableMessageError struct {
	Step    string
	Message string
}

func (e *UnacceptableMessageError) Error() string {
	return fmt.Sprintf("step %s cannot receive %s", e.Step, e.Message)
}

func (e *UnacceptableMessageError) Unwrap() error {
	return ErrUnacceptableMessage
}

// Unacceptable builds an UnacceptableMessageError for step s and msg.
func Unacceptable(s Step, msg Message) error {
	name := "<none>"
	if s != nil {
		name = s.Name()
	}
	return &UnacceptableMessageError{Step: name, Message: Describe(msg)}
}

// StepPanicError wraps a panic recovered while a step was running.
type StepPanicError struct {
	Step  string
	Value any
}

func (e *StepPanicError) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.Step, e.Value)
}

// ErrHistoryNotFound is returned when no archived history exists for a chain.
var ErrHistoryNotFound = errors.New("history not found")
