package probe

import (
	"context"
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
)

// DefaultMaxAttempts is the number of probes sent before giving up.
const DefaultMaxAttempts = 3

// Attempt is one probe handed to the transport.
type Attempt struct {
	Chain   domain.ChainID
	Target  string
	Attempt int
}

// Sender transmits probes. Send runs on the goroutine driving the chain and
// must not block on the reply.
type Sender interface {
	Send(ctx context.Context, a Attempt) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, a Attempt) error

func (f SenderFunc) Send(ctx context.Context, a Attempt) error { return f(ctx, a) }

// Status is how a probe ended.
type Status int

const (
	StatusAnswered Status = iota
	StatusExhausted
	StatusCancelled
	StatusLost
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAnswered:
		return "answered"
	case StatusExhausted:
		return "exhausted"
	case StatusCancelled:
		return "cancelled"
	case StatusLost:
		return "lost"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is reported exactly once per probe.
type Outcome struct {
	Chain    domain.ChainID
	Target   string
	Status   Status
	Attempts int
	Payload  string
	Reason   string
	Err      error
}

// Prober builds probe messages that share a transport and policy.
type Prober struct {
	sender      Sender
	maxAttempts int
	onOutcome   func(domain.Env, Outcome)
}

// Option configures a Prober.
type Option func(*Prober)

// WithMaxAttempts sets the attempt budget per target. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithOutcome registers the callback receiving every Outcome. It runs on the
// goroutine driving the chain.
func WithOutcome(fn func(domain.Env, Outcome)) Option {
	return func(p *Prober) {
		p.onOutcome = fn
	}
}

// New creates a Prober sending through sender.
func New(sender Sender, opts ...Option) *Prober {
	p := &Prober{
		sender:      sender,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Query creates the message that starts probing target on chain id.
func (p *Prober) Query(id uint64, target string) *Query {
	return &Query{envelope: envelope{Chain: id}, Target: target, prober: p}
}

// Fanout creates the message that probes every target under chain id.
func (p *Prober) Fanout(id uint64, targets ...string) *Fanout {
	return &Fanout{envelope: envelope{Chain: id}, Targets: targets, prober: p}
}

func (p *Prober) report(env domain.Env, o Outcome) {
	env.Logger().Debug("probe finished",
		"chain", o.Chain.String(),
		"target", o.Target,
		"status", o.Status.String(),
		"attempts", o.Attempts,
	)
	if p.onOutcome != nil {
		p.onOutcome(env, o)
	}
}
