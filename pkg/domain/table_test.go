package domain_test

import (
	"context"
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{ n int }
type noise struct{}

func (ping) ChainID() uint64                              { return 1 }
func (ping) IsExternal() bool                             { return false }
func (ping) InitialStep(domain.Env) (domain.Step, error)  { return nil, domain.ErrNotAnInitialMessage }
func (ping) Drop(domain.Env)                              {}
func (pong) ChainID() uint64                              { return 1 }
func (pong) IsExternal() bool                             { return false }
func (pong) InitialStep(domain.Env) (domain.Step, error)  { return nil, domain.ErrNotAnInitialMessage }
func (pong) Drop(domain.Env)                              {}
func (noise) ChainID() uint64                             { return 1 }
func (noise) IsExternal() bool                            { return false }
func (noise) InitialStep(domain.Env) (domain.Step, error) { return nil, domain.ErrNotAnInitialMessage }
func (noise) Drop(domain.Env)                             {}

type counter struct {
	domain.BaseStep
	total int
}

var counterTable = func() *domain.Table[*counter] {
	t := domain.NewTable[*counter]()
	domain.On(t, (*counter).onPing)
	domain.On(t, (*counter).onPong)
	return t
}()

func (c *counter) Name() string                    { return "counter" }
func (c *counter) Accepts(msg domain.Message) bool { return counterTable.Accepts(msg) }
func (c *counter) Receive(env domain.Env, msg domain.Message) (domain.Result, error) {
	return counterTable.Dispatch(c, env, msg)
}

func (c *counter) onPing(_ domain.Env, m ping) (domain.Result, error) {
	c.total += m.n
	return domain.Continue(c), nil
}

func (c *counter) onPong(_ domain.Env, m pong) (domain.Result, error) {
	c.total -= m.n
	if c.total <= 0 {
		return domain.Terminate(), nil
	}
	return domain.Continue(c), nil
}

func TestTable_Dispatch(t *testing.T) {
	env := domain.NewEnv(context.Background(), nil)
	c := &counter{}

	res, err := c.Receive(env, ping{n: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultContinue, res.Kind)
	assert.Same(t, c, res.Next)

	res, err = c.Receive(env, pong{n: 3})
	require.NoError(t, err)
	assert.False(t, res.Alive())
}

func TestTable_Unregistered(t *testing.T) {
	env := domain.NewEnv(context.Background(), nil)
	c := &counter{}

	assert.True(t, c.Accepts(ping{}))
	assert.False(t, c.Accepts(noise{}))

	_, err := c.Receive(env, noise{})
	require.ErrorIs(t, err, domain.ErrUnacceptableMessage)

	var unacceptable *domain.UnacceptableMessageError
	require.ErrorAs(t, err, &unacceptable)
	assert.Equal(t, "counter", unacceptable.Step)
}

func TestBaseStep_Defaults(t *testing.T) {
	c := &counter{BaseStep: domain.BaseStep{Chain: domain.ChainID{ID: 9}}}
	assert.Equal(t, domain.PriorityOperational, c.Priority())
	assert.False(t, c.CanRunFast(nil, ping{}))
	assert.Equal(t, domain.ChainID{ID: 9}, c.ChainID())
	assert.True(t, domain.Accepts(c, pong{}))
	assert.False(t, domain.Accepts(nil, pong{}))
}

// tally dispatches through counterTable but has no Accepts of its own.
type tally struct {
	domain.BaseStep
}

func (t *tally) Name() string            { return "tally" }
func (t *tally) Routes() domain.Acceptor { return counterTable }
func (t *tally) Receive(domain.Env, domain.Message) (domain.Result, error) {
	return domain.Continue(t), nil
}

func TestAccepts_FallsBackToRoutes(t *testing.T) {
	s := &tally{}
	assert.True(t, domain.Accepts(s, ping{}))
	assert.True(t, domain.Accepts(s, pong{}))
	assert.False(t, domain.Accepts(s, noise{}))
}

func TestResult_Constructors(t *testing.T) {
	c := &counter{}
	assert.True(t, domain.Continue(c).Alive())
	assert.Equal(t, domain.ResultTerminate, domain.Continue(nil).Kind)
	assert.False(t, domain.Terminate().Alive())

	r := domain.TransitionWith(c, true, ping{n: 1}, pong{n: 1})
	assert.Equal(t, domain.ResultTransition, r.Kind)
	assert.True(t, r.Deliver)
	assert.Len(t, r.Queued, 2)
	assert.False(t, domain.TransitionWith(nil, false).Alive())
}
