package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
)

// InitialFunc produces the first step of a chain from its first message.
type InitialFunc func(env domain.Env, msg domain.Message) (domain.Step, error)

// Chain is the sequential engine for one chain id.
type Chain struct {
	id domain.ChainID

	mu      sync.Mutex
	current domain.Step
	history []domain.HistoryEntry

	initial      InitialFunc
	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	historyLimit int
	now          func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger used for drop and failure reports.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Chain) {
		c.hooks = hooks
	}
}

// WithHistory keeps the last limit transitions for diagnostics. Zero disables it.
func WithHistory(limit int) Option {
	return func(c *Chain) {
		c.historyLimit = limit
	}
}

// WithClock overrides the time source used for history entries.
func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}

// WithInitialStep replaces Message.InitialStep as the factory for the first step.
func WithInitialStep(fn InitialFunc) Option {
	return func(c *Chain) {
		if fn != nil {
			c.initial = fn
		}
	}
}

// New creates an empty chain. It has no current step until its first message.
func New(id domain.ChainID, opts ...Option) *Chain {
	c := &Chain{
		id:      id,
		initial: messageInitial,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("chain", id.String())
	c.hooks = observability.Guard(c.hooks, c.logger)
	return c
}

func messageInitial(env domain.Env, msg domain.Message) (domain.Step, error) {
	return msg.InitialStep(env)
}

// ID returns the chain id.
func (c *Chain) ID() domain.ChainID {
	return c.id
}

// Received feeds msg to the chain and reports whether the chain is still alive.
// Messages queued by an explicit transition are delivered depth-first, in
// order, before Received returns.
func (c *Chain) Received(env domain.Env, msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := []domain.Message{msg}
	for len(pending) > 0 {
		next := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		queued := c.advance(env, next)
		for i := len(queued) - 1; i >= 0; i-- {
			pending = append(pending, queued[i])
		}
	}
	return c.current != nil
}

// advance processes a single message and returns the messages it queued for
// delivery.
func (c *Chain) advance(env domain.Env, msg domain.Message) []domain.Message {
	if c.current == nil {
		step, err := c.start(env, msg)
		switch {
		case errors.Is(err, domain.ErrNotAnInitialMessage):
			c.logger.Debug("message cannot start a chain", "message", domain.Describe(msg))
			c.drop(env, msg, domain.DropNotInitial)
			return nil
		case err != nil:
			c.logger.Error("failed to create initial step", "message", domain.Describe(msg), "err", err)
			c.drop(env, msg, domain.DropNoStep)
			return nil
		case step == nil:
			c.drop(env, msg, domain.DropNoStep)
			return nil
		}
		c.current = step
	}

	from := c.current
	res, err := c.invoke(env, msg)
	if err != nil {
		if errors.Is(err, domain.ErrUnacceptableMessage) {
			c.logger.Debug("step rejected message", "step", from.Name(), "message", domain.Describe(msg), "err", err)
			c.drop(env, msg, domain.DropUnacceptable)
			return nil
		}
		c.logger.Error("step failed, terminating chain", "step", from.Name(), "message", domain.Describe(msg), "err", err)
		c.current = nil
		c.record(env, msg, from, err)
		return nil
	}

	var queued []domain.Message
	switch res.Kind {
	case domain.ResultContinue:
		c.current = res.Next
	case domain.ResultTransition:
		c.current = res.Next
		if res.Deliver {
			queued = res.Queued
		} else {
			for _, q := range res.Queued {
				c.drop(env, q, domain.DropDiscarded)
			}
		}
	default:
		c.current = nil
	}

	c.record(env, msg, from, nil)
	return queued
}

func (c *Chain) start(env domain.Env, msg domain.Message) (step domain.Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.StepPanicError{Step: "<initial>", Value: r}
		}
	}()
	return c.initial(env, msg)
}

func (c *Chain) invoke(env domain.Env, msg domain.Message) (res domain.Result, err error) {
	step := c.current
	defer func() {
		if r := recover(); r != nil {
			err = &domain.StepPanicError{Step: step.Name(), Value: r}
		}
	}()
	return step.Receive(env, msg)
}

func (c *Chain) drop(env domain.Env, msg domain.Message, reason string) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("message drop hook panicked", "message", domain.Describe(msg), "panic", r)
			}
		}()
		msg.Drop(env)
	}()
	if c.hooks.OnDrop != nil {
		c.hooks.OnDrop(envContext(env), &domain.DropEvent{
			EventBase: domain.EventBase{Timestamp: c.now(), Type: domain.EventDrop, Chain: c.id},
			Message:   domain.Describe(msg),
			Reason:    reason,
		})
	}
}

func (c *Chain) record(env domain.Env, msg domain.Message, from domain.Step, failure error) {
	desc := domain.Describe(msg)
	to := stepName(c.current)
	at := c.now()

	c.remember(domain.HistoryEntry{Message: desc, Step: to, At: at})

	if c.hooks.OnTransition != nil {
		event := &domain.TransitionEvent{
			EventBase: domain.EventBase{Timestamp: at, Type: domain.EventTransition, Chain: c.id},
			Message:   desc,
			From:      stepName(from),
			To:        to,
			Alive:     c.current != nil,
		}
		if failure != nil {
			event.Failure = failure.Error()
		}
		c.hooks.OnTransition(envContext(env), event)
	}
}

// Lost discards the current step, calling its Lost hook. It reports whether a
// live step was actually discarded.
func (c *Chain) Lost(env domain.Env) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return false
	}
	step := c.current
	c.current = nil

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("step lost hook panicked", "step", step.Name(), "panic", r)
			}
		}()
		step.Lost(env)
	}()

	c.remember(domain.HistoryEntry{Message: "<lost>", Step: "", At: c.now()})
	return true
}

// remember appends e to the history, keeping only the last historyLimit
// entries. The caller holds c.mu.
func (c *Chain) remember(e domain.HistoryEntry) {
	if c.historyLimit <= 0 {
		return
	}
	c.history = append(c.history, e)
	if over := len(c.history) - c.historyLimit; over > 0 {
		c.history = append(c.history[:0], c.history[over:]...)
	}
}

// Priority returns the current step's priority, or PriorityExpendable when the
// chain has no step.
func (c *Chain) Priority() domain.Priority {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.PriorityExpendable
	}
	return c.current.Priority()
}

// Alive reports whether the chain has a current step.
func (c *Chain) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Receives reports whether the current step declares it handles msg.
func (c *Chain) Receives(msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Accepts(c.current, msg)
}

// CanRunFast asks the current step whether msg can be handled inline.
// A chain without a step never runs fast.
func (c *Chain) CanRunFast(env domain.Env, msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return false
	}
	return c.current.CanRunFast(env, msg)
}

// StepName returns the name of the current step, or "" when there is none.
func (c *Chain) StepName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return stepName(c.current)
}

// History returns a copy of the recorded transitions.
func (c *Chain) History() []domain.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Describe renders the current step and, when recorded, the transition history.
func (c *Chain) Describe() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := stepName(c.current)
	if name == "" {
		name = "<terminated>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", c.id, name)
	for _, h := range c.history {
		fmt.Fprintf(&b, "  %s\n", h)
	}
	return b.String()
}

func stepName(s domain.Step) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

func envContext(env domain.Env) context.Context {
	if env == nil {
		return context.Background()
	}
	return env.Context()
}
