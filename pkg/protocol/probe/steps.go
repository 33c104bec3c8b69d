package probe

import (
	"fmt"

	"github.com/aretw0/weft/pkg/chain"
	"github.com/aretw0/weft/pkg/domain"
)

// awaitReply owns one target: it sends the probe and waits for the answer.
type awaitReply struct {
	domain.BaseStep
	prober  *Prober
	target  string
	attempt int
	sent    bool
}

var awaitTable = func() *domain.Table[*awaitReply] {
	t := domain.NewTable[*awaitReply]()
	domain.On(t, (*awaitReply).onQuery)
	domain.On(t, (*awaitReply).onReply)
	domain.On(t, (*awaitReply).onTimeout)
	domain.On(t, (*awaitReply).onResend)
	domain.On(t, (*awaitReply).onCancel)
	return t
}()

func (s *awaitReply) Name() string {
	return fmt.Sprintf("await-reply(%s#%d)", s.target, s.attempt)
}

func (s *awaitReply) Priority() domain.Priority { return domain.PriorityImportant }

// Accepts matches follow-up messages for this target.
func (s *awaitReply) Accepts(msg domain.Message) bool {
	target, ok := targetOf(msg)
	return ok && (target == "" || target == s.target)
}

// Replies only finish the chain, so they can be taken on the caller's goroutine.
func (s *awaitReply) CanRunFast(env domain.Env, msg domain.Message) bool {
	_, ok := msg.(*Reply)
	return ok && s.Accepts(msg)
}

func (s *awaitReply) Receive(env domain.Env, msg domain.Message) (domain.Result, error) {
	if _, ok := msg.(*Query); !ok && !s.Accepts(msg) {
		return domain.Result{}, domain.Unacceptable(s, msg)
	}
	return awaitTable.Dispatch(s, env, msg)
}

func (s *awaitReply) Lost(env domain.Env) {
	s.finish(env, Outcome{Status: StatusLost})
}

func (s *awaitReply) onQuery(env domain.Env, q *Query) (domain.Result, error) {
	if s.sent {
		return domain.Result{}, domain.Unacceptable(s, q)
	}
	s.sent = true
	return s.send(env)
}

func (s *awaitReply) onReply(env domain.Env, r *Reply) (domain.Result, error) {
	s.finish(env, Outcome{Status: StatusAnswered, Payload: r.Payload})
	return domain.Terminate(), nil
}

func (s *awaitReply) onTimeout(env domain.Env, t *Timeout) (domain.Result, error) {
	if s.attempt >= s.prober.maxAttempts {
		s.finish(env, Outcome{Status: StatusExhausted})
		return domain.Terminate(), nil
	}
	next := &resend{envelope: envelope{Chain: s.Chain.ID}, target: s.target}
	return domain.TransitionWith(s, true, next), nil
}

func (s *awaitReply) onResend(env domain.Env, _ *resend) (domain.Result, error) {
	return s.send(env)
}

func (s *awaitReply) onCancel(env domain.Env, c *Cancel) (domain.Result, error) {
	s.finish(env, Outcome{Status: StatusCancelled, Reason: c.Reason})
	return domain.Terminate(), nil
}

func (s *awaitReply) send(env domain.Env) (domain.Result, error) {
	s.attempt++
	err := s.prober.sender.Send(env.Context(), Attempt{Chain: s.Chain, Target: s.target, Attempt: s.attempt})
	if err != nil {
		s.finish(env, Outcome{Status: StatusFailed, Err: err})
		return domain.Result{}, fmt.Errorf("probe %s attempt %d: %w", s.target, s.attempt, err)
	}
	return domain.Continue(s), nil
}

func (s *awaitReply) finish(env domain.Env, o Outcome) {
	o.Chain = s.Chain
	o.Target = s.target
	o.Attempts = s.attempt
	s.prober.report(env, o)
}

// fanoutStart turns a Fanout into one Query per target, all delivered to an
// aggregating step before the Fanout is considered handled.
type fanoutStart struct {
	domain.BaseStep
}

func (s *fanoutStart) Name() string              { return "fanout" }
func (s *fanoutStart) Priority() domain.Priority { return domain.PriorityImportant }

func (s *fanoutStart) Receive(env domain.Env, msg domain.Message) (domain.Result, error) {
	f, ok := msg.(*Fanout)
	if !ok {
		return domain.Result{}, domain.Unacceptable(s, msg)
	}

	queries := make([]domain.Message, 0, len(f.Targets))
	for _, target := range f.Targets {
		queries = append(queries, f.prober.Query(f.Chain, target))
	}
	agg := chain.NewAggregate(s.Chain, len(queries), nil, chain.WithLogger(env.Logger()))
	return domain.TransitionWith(agg, true, queries...), nil
}
