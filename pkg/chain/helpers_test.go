package chain_test

import (
	"sync/atomic"

	"github.com/aretw0/weft/pkg/domain"
)

// testMsg is a message whose effect on a recorder step is scripted by do.
type testMsg struct {
	chain   uint64
	label   string
	initial bool
	do      func(r *recorder) (domain.Result, error)
	drops   *atomic.Int32
}

func (m *testMsg) ChainID() uint64  { return m.chain }
func (m *testMsg) IsExternal() bool { return false }
func (m *testMsg) String() string   { return m.label }

func (m *testMsg) InitialStep(env domain.Env) (domain.Step, error) {
	if !m.initial {
		return nil, domain.ErrNotAnInitialMessage
	}
	return newRecorder("first"), nil
}

func (m *testMsg) Drop(env domain.Env) {
	if m.drops != nil {
		m.drops.Add(1)
	}
}

// recorder remembers the labels it received.
type recorder struct {
	domain.BaseStep
	name     string
	priority domain.Priority
	seen     []string
	lost     int
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, priority: domain.PriorityOperational}
}

func (r *recorder) Name() string              { return r.name }
func (r *recorder) Priority() domain.Priority { return r.priority }
func (r *recorder) Lost(domain.Env)           { r.lost++ }

func (r *recorder) Receive(env domain.Env, msg domain.Message) (domain.Result, error) {
	m, ok := msg.(*testMsg)
	if !ok {
		return domain.Result{}, domain.Unacceptable(r, msg)
	}
	r.seen = append(r.seen, m.label)
	if m.do != nil {
		return m.do(r)
	}
	return domain.Continue(r), nil
}

func start(label string) *testMsg {
	return &testMsg{chain: 1, label: label, initial: true}
}

func next(label string, do func(r *recorder) (domain.Result, error)) *testMsg {
	return &testMsg{chain: 1, label: label, do: do}
}
