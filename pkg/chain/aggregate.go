package chain

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// Aggregate is a Step that multiplexes independent sub-chains sharing the
// parent's chain id. Each message goes to the first sub-chain whose current
// step accepts it; otherwise a new sub-chain is started for it.
//
// An Aggregate is only driven while its parent chain is held, so it mutates
// its sub-chains without further locking.
type Aggregate struct {
	domain.BaseStep

	chains []*Chain
	opts   []Option
}

// NewAggregate creates an aggregating step with room for prefill sub-chains.
// spawn builds the first step of each sub-chain; nil uses Message.InitialStep.
func NewAggregate(id domain.ChainID, prefill int, spawn InitialFunc, opts ...Option) *Aggregate {
	if prefill < 0 {
		prefill = 0
	}
	subOpts := make([]Option, 0, len(opts)+1)
	subOpts = append(subOpts, opts...)
	if spawn != nil {
		subOpts = append(subOpts, WithInitialStep(spawn))
	}
	return &Aggregate{
		BaseStep: domain.BaseStep{Chain: id},
		chains:   make([]*Chain, 0, prefill),
		opts:     subOpts,
	}
}

// Name lists the live sub-chain steps.
func (a *Aggregate) Name() string {
	names := make([]string, 0, len(a.chains))
	for _, c := range a.chains {
		names = append(names, c.StepName())
	}
	return fmt.Sprintf("aggregate[%s]", strings.Join(names, ","))
}

// Priority is the highest priority among live sub-chains.
func (a *Aggregate) Priority() domain.Priority {
	p := domain.PriorityExpendable
	for _, c := range a.chains {
		if cp := c.Priority(); cp > p {
			p = cp
		}
	}
	return p
}

// Len returns the number of live sub-chains.
func (a *Aggregate) Len() int {
	return len(a.chains)
}

// Accepts reports whether any live sub-chain handles msg.
func (a *Aggregate) Accepts(msg domain.Message) bool {
	for _, c := range a.chains {
		if c.Receives(msg) {
			return true
		}
	}
	return false
}

// Receive routes msg to a sub-chain and terminates once none remain.
func (a *Aggregate) Receive(env domain.Env, msg domain.Message) (domain.Result, error) {
	for i, c := range a.chains {
		if !c.Receives(msg) {
			continue
		}
		if !c.Received(env, msg) {
			a.chains = append(a.chains[:i], a.chains[i+1:]...)
		}
		return a.result(), nil
	}

	c := New(a.Chain, a.opts...)
	if c.Received(env, msg) {
		a.chains = append(a.chains, c)
	}
	return a.result(), nil
}

// Lost discards every sub-chain.
func (a *Aggregate) Lost(env domain.Env) {
	for _, c := range a.chains {
		c.Lost(env)
	}
	a.chains = a.chains[:0]
}

func (a *Aggregate) result() domain.Result {
	if len(a.chains) == 0 {
		return domain.Terminate()
	}
	return domain.Continue(a)
}
