package dispatch_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aretw0/weft/pkg/domain"
)

var testEnv = domain.NewEnv(context.Background(), nil)

// probe collects what happened to one chain id.
type probe struct {
	mu      sync.Mutex
	seen    []string
	inside  atomic.Int32
	overlap atomic.Int32
	starts  atomic.Int32
	lost    atomic.Int32
}

func (p *probe) record(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, label)
}

func (p *probe) labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.seen))
	copy(out, p.seen)
	return out
}

// msg scripts the behaviour of step for one delivery.
type msg struct {
	chain    uint64
	label    string
	initial  bool
	priority domain.Priority
	fast     bool
	stop     bool
	gate     chan struct{}
	entered  chan struct{}
	queue    []domain.Message
	probe    *probe
}

func (m *msg) ChainID() uint64  { return m.chain }
func (m *msg) IsExternal() bool { return false }
func (m *msg) String() string   { return m.label }
func (m *msg) Drop(domain.Env)  {}

func (m *msg) InitialStep(env domain.Env) (domain.Step, error) {
	if !m.initial {
		return nil, domain.ErrNotAnInitialMessage
	}
	gen := m.probe.starts.Add(1)
	return &step{gen: gen, priority: m.priority, probe: m.probe}, nil
}

type step struct {
	domain.BaseStep
	gen      int32
	priority domain.Priority
	probe    *probe
}

func (s *step) Name() string              { return fmt.Sprintf("step-%d", s.gen) }
func (s *step) Priority() domain.Priority { return s.priority }
func (s *step) Lost(domain.Env)           { s.probe.lost.Add(1) }

func (s *step) CanRunFast(env domain.Env, m domain.Message) bool {
	tm, ok := m.(*msg)
	return ok && tm.fast
}

func (s *step) Receive(env domain.Env, m domain.Message) (domain.Result, error) {
	tm, ok := m.(*msg)
	if !ok {
		return domain.Result{}, domain.Unacceptable(s, m)
	}

	if s.probe.inside.Add(1) > 1 {
		s.probe.overlap.Add(1)
	}
	defer s.probe.inside.Add(-1)

	if tm.entered != nil {
		tm.entered <- struct{}{}
	}
	if tm.gate != nil {
		<-tm.gate
	}
	s.probe.record(tm.label)

	switch {
	case tm.stop:
		return domain.Terminate(), nil
	case len(tm.queue) > 0:
		return domain.TransitionWith(s, true, tm.queue...), nil
	}
	return domain.Continue(s), nil
}

func open(id uint64, p *probe, priority domain.Priority) *msg {
	return &msg{chain: id, label: "open", initial: true, priority: priority, probe: p}
}

func send(id uint64, p *probe, label string) *msg {
	return &msg{chain: id, label: label, probe: p}
}
