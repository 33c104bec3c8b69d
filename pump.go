package weft

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// ErrPumpClosed is returned by Submit after Close.
var ErrPumpClosed = errors.New("pump closed")

// Handler is the part of a Node used by the Pump.
type Handler interface {
	Handle(msg domain.Message) bool
	HandleFast(msg domain.Message) bool
}

// Pump is the asynchronous entry point for transports that must not block:
// Submit runs a message inline when the fast path allows it and otherwise
// hands it to a bounded backlog drained by worker goroutines.
//
// The backlog is split into one lane per worker and every chain is pinned to
// a lane, so messages submitted one after another for the same chain are
// handled in submission order. A message never takes the fast path while an
// earlier one for its chain is still waiting.
type Pump struct {
	handler Handler
	workers int
	backlog int
	logger  *slog.Logger

	mu       sync.RWMutex
	closed   bool
	lanes    []chan domain.Message
	stopping chan struct{}
	stopOnce sync.Once

	queuedMu sync.Mutex
	queued   map[domain.ChainID]int
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// PumpWorkers sets the number of goroutines draining the backlog.
func PumpWorkers(n int) PumpOption {
	return func(p *Pump) {
		if n > 0 {
			p.workers = n
		}
	}
}

// PumpBacklog sets the number of messages that may wait for a worker. The
// capacity is shared out evenly between the worker lanes.
func PumpBacklog(n int) PumpOption {
	return func(p *Pump) {
		if n >= 0 {
			p.backlog = n
		}
	}
}

// PumpLogger sets the logger.
func PumpLogger(logger *slog.Logger) PumpOption {
	return func(p *Pump) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPump creates a Pump feeding h. Call Run to start the workers.
func NewPump(h Handler, opts ...PumpOption) *Pump {
	p := &Pump{
		handler:  h,
		workers:  4,
		backlog:  1024,
		logger:   logging.NewNop(),
		stopping: make(chan struct{}),
		queued:   make(map[domain.ChainID]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	perLane := (p.backlog + p.workers - 1) / p.workers
	p.lanes = make([]chan domain.Message, p.workers)
	for i := range p.lanes {
		p.lanes[i] = make(chan domain.Message, perLane)
	}
	return p
}

// Submit delivers msg. It blocks only while the lane of its chain is full,
// until ctx is done or the pump is closed.
func (p *Pump) Submit(ctx context.Context, msg domain.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPumpClosed
	}

	id := domain.ChainOf(msg)
	if !p.waiting(id) && p.handler.HandleFast(msg) {
		return nil
	}

	p.track(id, 1)
	select {
	case p.laneOf(id) <- msg:
		return nil
	case <-p.stopping:
		p.track(id, -1)
		return ErrPumpClosed
	case <-ctx.Done():
		p.track(id, -1)
		return ctx.Err()
	}
}

// Pending returns the number of messages waiting for a worker.
func (p *Pump) Pending() int {
	n := 0
	for _, lane := range p.lanes {
		n += len(lane)
	}
	return n
}

// Run drains the backlog until Close has been called and every accepted
// message is handled, or until ctx is done.
func (p *Pump) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lane := range p.lanes {
		lane := lane
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-lane:
					if !ok {
						return nil
					}
					p.handler.Handle(msg)
					p.track(domain.ChainOf(msg), -1)
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		p.logger.Debug("pump stopped", "pending", p.Pending())
		return nil
	}
	return err
}

// Close stops accepting messages. Messages already accepted are still handled
// by Run.
func (p *Pump) Close() {
	p.stopOnce.Do(func() {
		close(p.stopping)
		p.mu.Lock()
		p.closed = true
		for _, lane := range p.lanes {
			close(lane)
		}
		p.mu.Unlock()
	})
}

func (p *Pump) laneOf(id domain.ChainID) chan domain.Message {
	return p.lanes[dispatch.Key(id)%uint64(len(p.lanes))]
}

// waiting reports whether a message for id is accepted but not yet handled.
func (p *Pump) waiting(id domain.ChainID) bool {
	p.queuedMu.Lock()
	defer p.queuedMu.Unlock()
	return p.queued[id] > 0
}

func (p *Pump) track(id domain.ChainID, delta int) {
	p.queuedMu.Lock()
	defer p.queuedMu.Unlock()
	if n := p.queued[id] + delta; n > 0 {
		p.queued[id] = n
	} else {
		delete(p.queued, id)
	}
}
