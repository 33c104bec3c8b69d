package probe

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
)

// envelope carries the chain id shared by every probe message. Probe chains
// are always external: their ids are allocated by the querying peer.
type envelope struct {
	Chain uint64
}

func (e envelope) ChainID() uint64  { return e.Chain }
func (e envelope) IsExternal() bool { return true }

func (e envelope) InitialStep(domain.Env) (domain.Step, error) {
	return nil, domain.ErrNotAnInitialMessage
}

func (e envelope) Drop(env domain.Env) {
	env.Logger().Debug("probe message dropped", "chain", domain.ChainID{ID: e.Chain, External: true}.String())
}

// Query starts a probe chain.
type Query struct {
	envelope
	Target string

	prober *Prober
}

func (q *Query) InitialStep(env domain.Env) (domain.Step, error) {
	return &awaitReply{
		BaseStep: domain.BaseStep{Chain: domain.ChainOf(q)},
		prober:   q.prober,
		target:   q.Target,
	}, nil
}

func (q *Query) String() string { return "query(" + q.Target + ")" }

// Reply answers the probe sent to Target. An empty Target matches any probe
// of the chain.
type Reply struct {
	envelope
	Target  string
	Payload string
}

// NewReply creates a Reply for chain id.
func NewReply(id uint64, target, payload string) *Reply {
	return &Reply{envelope: envelope{Chain: id}, Target: target, Payload: payload}
}

func (r *Reply) String() string { return "reply(" + r.Target + ")" }

// Timeout reports that the last probe to Target went unanswered.
type Timeout struct {
	envelope
	Target string
}

// NewTimeout creates a Timeout for chain id.
func NewTimeout(id uint64, target string) *Timeout {
	return &Timeout{envelope: envelope{Chain: id}, Target: target}
}

func (t *Timeout) String() string { return "timeout(" + t.Target + ")" }

// Cancel abandons the probe to Target.
type Cancel struct {
	envelope
	Target string
	Reason string
}

// NewCancel creates a Cancel for chain id.
func NewCancel(id uint64, target, reason string) *Cancel {
	return &Cancel{envelope: envelope{Chain: id}, Target: target, Reason: reason}
}

func (c *Cancel) String() string { return "cancel(" + c.Target + ")" }

// resend is queued by the probe step itself after a timeout and never
// travels through the dispatcher.
type resend struct {
	envelope
	target string
}

func (r *resend) String() string { return "resend(" + r.target + ")" }

// Fanout starts one chain probing every target.
type Fanout struct {
	envelope
	Targets []string

	prober *Prober
}

func (f *Fanout) InitialStep(env domain.Env) (domain.Step, error) {
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("fanout on %s has no targets", domain.ChainOf(f))
	}
	return &fanoutStart{BaseStep: domain.BaseStep{Chain: domain.ChainOf(f)}}, nil
}

func (f *Fanout) String() string { return "fanout(" + strings.Join(f.Targets, ",") + ")" }

func targetOf(msg domain.Message) (string, bool) {
	switch m := msg.(type) {
	case *Reply:
		return m.Target, true
	case *Timeout:
		return m.Target, true
	case *Cancel:
		return m.Target, true
	case *resend:
		return m.target, true
	}
	return "", false
}
