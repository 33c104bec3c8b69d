package probe_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/weft/pkg/chain"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/protocol/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var env = domain.NewEnv(context.Background(), nil)

type wire struct {
	mu       sync.Mutex
	sent     []probe.Attempt
	outcomes []probe.Outcome
	fail     error
}

func (w *wire) Send(ctx context.Context, a probe.Attempt) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, a)
	return w.fail
}

func (w *wire) outcome(_ domain.Env, o probe.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes = append(w.outcomes, o)
}

func (w *wire) prober(opts ...probe.Option) *probe.Prober {
	return probe.New(w, append([]probe.Option{probe.WithOutcome(w.outcome)}, opts...)...)
}

func TestProbe_Answered(t *testing.T) {
	w := &wire{}
	p := w.prober()
	d := dispatch.New()

	require.True(t, d.Handle(env, p.Query(1, "peer-a")))
	require.Len(t, w.sent, 1)
	assert.Equal(t, probe.Attempt{Chain: domain.ChainID{ID: 1, External: true}, Target: "peer-a", Attempt: 1}, w.sent[0])
	assert.Equal(t, int64(1), d.LiveChains())

	// Replies take the fast path.
	require.True(t, d.HandleFast(env, probe.NewReply(1, "peer-a", "pong")))
	require.Len(t, w.outcomes, 1)
	assert.Equal(t, probe.StatusAnswered, w.outcomes[0].Status)
	assert.Equal(t, "pong", w.outcomes[0].Payload)
	assert.Equal(t, 1, w.outcomes[0].Attempts)
	assert.Equal(t, int64(0), d.LiveChains())
}

func TestProbe_RetriesUntilExhausted(t *testing.T) {
	w := &wire{}
	p := w.prober(probe.WithMaxAttempts(3))
	c := chain.New(domain.ChainID{ID: 2, External: true}, chain.WithHistory(16))

	require.True(t, c.Received(env, p.Query(2, "peer-b")))
	require.True(t, c.Received(env, probe.NewTimeout(2, "peer-b")))
	require.True(t, c.Received(env, probe.NewTimeout(2, "peer-b")))
	assert.Equal(t, "await-reply(peer-b#3)", c.StepName())
	assert.False(t, c.Received(env, probe.NewTimeout(2, "peer-b")))

	require.Len(t, w.sent, 3)
	for i, a := range w.sent {
		assert.Equal(t, i+1, a.Attempt)
	}
	require.Len(t, w.outcomes, 1)
	assert.Equal(t, probe.StatusExhausted, w.outcomes[0].Status)
	assert.Equal(t, 3, w.outcomes[0].Attempts)

	// The resend produced by a timeout is recorded in the same pass.
	var messages []string
	for _, h := range c.History() {
		messages = append(messages, h.Message)
	}
	assert.Equal(t, []string{
		"query(peer-b)",
		"timeout(peer-b)", "resend(peer-b)",
		"timeout(peer-b)", "resend(peer-b)",
		"timeout(peer-b)",
	}, messages)
}

func TestProbe_FollowUpWithoutChainIsDropped(t *testing.T) {
	var drops []string
	c := chain.New(domain.ChainID{ID: 3, External: true}, chain.WithLifecycleHooks(domain.LifecycleHooks{
		OnDrop: func(_ context.Context, e *domain.DropEvent) { drops = append(drops, e.Reason) },
	}))

	assert.False(t, c.Received(env, probe.NewCancel(3, "", "shutdown")))
	assert.False(t, c.Received(env, probe.NewReply(3, "", "late")))
	assert.Equal(t, []string{domain.DropNotInitial, domain.DropNotInitial}, drops)
}

func TestProbe_RejectsForeignMessages(t *testing.T) {
	w := &wire{}
	p := w.prober()
	var drops []string
	c := chain.New(domain.ChainID{ID: 4, External: true}, chain.WithLifecycleHooks(domain.LifecycleHooks{
		OnDrop: func(_ context.Context, e *domain.DropEvent) { drops = append(drops, e.Reason) },
	}))

	require.True(t, c.Received(env, p.Query(4, "peer-a")))
	assert.True(t, c.Received(env, p.Query(4, "peer-a")), "duplicate query")
	assert.True(t, c.Received(env, probe.NewReply(4, "peer-z", "?")), "reply for another target")

	assert.Equal(t, []string{domain.DropUnacceptable, domain.DropUnacceptable}, drops)
	assert.Len(t, w.sent, 1)
	assert.Empty(t, w.outcomes)
}

func TestProbe_Cancel(t *testing.T) {
	w := &wire{}
	p := w.prober()
	d := dispatch.New()

	require.True(t, d.Handle(env, p.Query(5, "peer-a")))
	assert.False(t, d.HandleFast(env, probe.NewCancel(5, "", "operator")), "cancel is not fast")
	require.True(t, d.Handle(env, probe.NewCancel(5, "", "operator")))

	require.Len(t, w.outcomes, 1)
	assert.Equal(t, probe.StatusCancelled, w.outcomes[0].Status)
	assert.Equal(t, "operator", w.outcomes[0].Reason)
	assert.Equal(t, dispatch.NoInformation, d.Describe(context.Background(), domain.ChainID{ID: 5, External: true}))
}

func TestProbe_SendFailureTerminates(t *testing.T) {
	w := &wire{fail: errors.New("no route")}
	p := w.prober()
	var failure string
	c := chain.New(domain.ChainID{ID: 6, External: true}, chain.WithLifecycleHooks(domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) { failure = e.Failure },
	}))

	assert.False(t, c.Received(env, p.Query(6, "peer-a")))
	require.Len(t, w.outcomes, 1)
	assert.Equal(t, probe.StatusFailed, w.outcomes[0].Status)
	assert.ErrorIs(t, w.outcomes[0].Err, w.fail)
	assert.Contains(t, failure, "no route")
}

func TestProbe_LostOnEviction(t *testing.T) {
	w := &wire{}
	p := w.prober()
	d := dispatch.New(dispatch.WithCapacity(1))

	require.True(t, d.Handle(env, p.Query(7, "peer-a")))
	require.True(t, d.Handle(env, p.Query(8, "peer-b")))

	require.Len(t, w.outcomes, 1)
	assert.Equal(t, probe.StatusLost, w.outcomes[0].Status)
	assert.Equal(t, "peer-a", w.outcomes[0].Target)
}

func TestFanout(t *testing.T) {
	w := &wire{}
	p := w.prober(probe.WithMaxAttempts(2))
	d := dispatch.New(dispatch.WithHistory(8))
	id := domain.ChainID{ID: 9, External: true}

	require.True(t, d.Handle(env, p.Fanout(9, "a", "b", "c")))
	require.Len(t, w.sent, 3, "one probe per target")
	assert.Contains(t, d.Describe(context.Background(), id), "aggregate[await-reply(a#1),await-reply(b#1),await-reply(c#1)]")

	assert.False(t, d.HandleFast(env, probe.NewReply(9, "b", "ok")), "aggregates never run fast")
	require.True(t, d.Handle(env, probe.NewReply(9, "b", "ok")))
	require.True(t, d.Handle(env, probe.NewTimeout(9, "a")))
	require.Len(t, w.sent, 4)
	assert.Equal(t, probe.Attempt{Chain: id, Target: "a", Attempt: 2}, w.sent[3])

	require.True(t, d.Handle(env, probe.NewCancel(9, "c", "enough")))
	assert.Equal(t, int64(1), d.LiveChains())

	require.True(t, d.Handle(env, probe.NewTimeout(9, "a")))
	assert.Equal(t, int64(0), d.LiveChains())

	statuses := map[string]probe.Status{}
	for _, o := range w.outcomes {
		statuses[o.Target] = o.Status
	}
	assert.Equal(t, map[string]probe.Status{
		"a": probe.StatusExhausted,
		"b": probe.StatusAnswered,
		"c": probe.StatusCancelled,
	}, statuses)
}

func TestFanout_LostReachesEveryProbe(t *testing.T) {
	w := &wire{}
	p := w.prober()
	c := chain.New(domain.ChainID{ID: 10, External: true})

	require.True(t, c.Received(env, p.Fanout(10, "a", "b")))
	assert.Equal(t, domain.PriorityImportant, c.Priority())
	assert.True(t, c.Lost(env))

	require.Len(t, w.outcomes, 2)
	for _, o := range w.outcomes {
		assert.Equal(t, probe.StatusLost, o.Status)
	}
}

func TestFanout_WithoutTargets(t *testing.T) {
	c := chain.New(domain.ChainID{ID: 11, External: true})
	assert.False(t, c.Received(env, (&wire{}).prober().Fanout(11)))
}
