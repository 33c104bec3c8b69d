package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/chain"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/ports"
)

const (
	// DefaultCapacity is the number of idle chains kept before eviction starts.
	DefaultCapacity = 10000
	// DefaultShards is the number of independently locked index buckets.
	DefaultShards = 64
	// DefaultArchiveTimeout bounds a single history store write.
	DefaultArchiveTimeout = 2 * time.Second
	// DefaultArchiveBacklog is the number of finished histories that may wait
	// for the store before new ones are discarded.
	DefaultArchiveBacklog = 1024
)

// NoInformation is reported by Describe for chains the registry does not know.
const NoInformation = "no information"

// Dispatcher maps chain ids to chains and drives them.
type Dispatcher struct {
	capacity int
	shards   []*shard
	idle     *idleIndex

	handles atomic.Uint64
	live    atomic.Int64
	tracked atomic.Int64

	logger         *slog.Logger
	metrics        *observability.Metrics
	hooks          domain.LifecycleHooks
	historyLimit   int
	store          ports.HistoryStore
	archiveTimeout time.Duration
	archiveBacklog int
	archiver       *archiver
	now            func() time.Time
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithCapacity sets the maximum number of idle chains kept before eviction.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		d.capacity = n
	}
}

// WithShards sets the number of index buckets. Values below one are ignored.
func WithShards(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.shards = newShards(n)
		}
	}
}

// WithLogger configures a logger for the Dispatcher and its chains.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics exports dispatcher metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(d *Dispatcher) {
		d.hooks = hooks
	}
}

// WithHistory records the last limit transitions of every chain. Zero disables it.
func WithHistory(limit int) Option {
	return func(d *Dispatcher) {
		d.historyLimit = limit
	}
}

// WithHistoryStore archives the history of chains when they are removed.
// It only has an effect when history is enabled.
func WithHistoryStore(store ports.HistoryStore) Option {
	return func(d *Dispatcher) {
		d.store = store
	}
}

// WithArchiveBacklog sets how many finished histories may wait for the
// store. Histories beyond it are discarded with a warning.
func WithArchiveBacklog(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.archiveBacklog = n
		}
	}
}

// WithClock overrides the time source used for staleness and history.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		capacity:       DefaultCapacity,
		idle:           newIdleIndex(),
		logger:         logging.NewNop(),
		archiveTimeout: DefaultArchiveTimeout,
		archiveBacklog: DefaultArchiveBacklog,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.shards) == 0 {
		d.shards = newShards(DefaultShards)
	}
	if d.capacity < 0 {
		d.capacity = 0
	}
	d.hooks = observability.Chain(observability.Hooks(d.metrics, nil), observability.Guard(d.hooks, d.logger))
	if d.store != nil && d.historyLimit > 0 {
		d.archiver = newArchiver(d.store, d.archiveBacklog, d.archiveTimeout, d.logger)
	}
	return d
}

// Flush waits until every history archived so far has reached the store.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if d.archiver == nil {
		return nil
	}
	return d.archiver.flush(ctx)
}

// Close writes pending histories and stops archiving. Chains keep working;
// histories of chains removed afterwards are discarded.
func (d *Dispatcher) Close() {
	if d.archiver != nil {
		d.archiver.close()
	}
}

// Handle delivers msg to its chain, creating the chain if needed. It returns
// true once the message is processed or queued for the goroutine already
// driving the chain.
func (d *Dispatcher) Handle(env domain.Env, msg domain.Message) bool {
	return d.handle(env, msg, false)
}

// HandleFast delivers msg only if it can be processed right now on the
// calling goroutine: the chain exists, is not being driven, has nothing
// queued, and its current step agrees to run msg fast. Otherwise it returns
// false without side effects and the caller should fall back to Handle.
func (d *Dispatcher) HandleFast(env domain.Env, msg domain.Message) bool {
	return d.handle(env, msg, true)
}

func (d *Dispatcher) handle(env domain.Env, msg domain.Message, fastOnly bool) bool {
	id := domain.ChainOf(msg)

	for {
		c := d.lookup(id, !fastOnly)
		if c == nil {
			d.metrics.HandledOn(observability.PathFastRejected)
			return false
		}

		c.mu.Lock()
		if c.removed {
			// Lost a race with termination or eviction; retry on a fresh container.
			c.mu.Unlock()
			if fastOnly {
				d.metrics.HandledOn(observability.PathFastRejected)
				return false
			}
			continue
		}

		if c.working {
			if fastOnly {
				c.mu.Unlock()
				d.metrics.HandledOn(observability.PathFastRejected)
				return false
			}
			c.enqueue(pending{env: env, msg: msg})
			c.mu.Unlock()
			d.metrics.HandledOn(observability.PathQueued)
			return true
		}

		if fastOnly && (len(c.queue) > 0 || !c.chain.CanRunFast(env, msg)) {
			c.mu.Unlock()
			d.metrics.HandledOn(observability.PathFastRejected)
			return false
		}

		c.working = true
		if c.idle {
			c.idle = false
			d.idle.remove(c.handle)
			d.metrics.SetIdle(int64(d.idle.Len()))
		}
		c.enqueue(pending{env: env, msg: msg})
		c.mu.Unlock()

		d.drain(c)

		if fastOnly {
			d.metrics.HandledOn(observability.PathFast)
		} else {
			d.metrics.HandledOn(observability.PathInline)
		}
		d.purge(env)
		return true
	}
}

func (d *Dispatcher) shardFor(id domain.ChainID) *shard {
	return d.shards[Key(id)%uint64(len(d.shards))]
}

func (d *Dispatcher) lookup(id domain.ChainID, create bool) *container {
	s := d.shardFor(id)
	if !create {
		return s.get(id)
	}
	c, created := s.getOrCreate(id, func() *container {
		return &container{
			handle: d.handles.Add(1),
			id:     id,
			chain:  chain.New(id, d.chainOptions()...),
		}
	})
	if created {
		d.metrics.SetTracked(d.tracked.Add(1))
	}
	return c
}

func (d *Dispatcher) chainOptions() []chain.Option {
	return []chain.Option{
		chain.WithLogger(d.logger),
		chain.WithLifecycleHooks(d.hooks),
		chain.WithHistory(d.historyLimit),
		chain.WithClock(d.now),
	}
}

// drain runs queued messages on the calling goroutine until the queue is
// empty, then releases the claim.
func (d *Dispatcher) drain(c *container) {
	for {
		c.mu.Lock()
		p, ok := c.next()
		if !ok {
			c.working = false
			if c.alive {
				c.idle = true
				c.idleSeq++
				d.idle.add(idleEntry{
					handle:   c.handle,
					seq:      c.idleSeq,
					id:       c.id,
					priority: c.priority,
					last:     c.lastTransition,
				})
			} else {
				c.removed = true
				d.unindex(c)
			}
			removed := c.removed
			c.mu.Unlock()

			if removed {
				d.archive(c)
			} else {
				d.metrics.SetIdle(int64(d.idle.Len()))
			}
			return
		}
		c.mu.Unlock()

		alive := d.feed(c, p)
		priority := c.chain.Priority()

		c.mu.Lock()
		c.priority = priority
		c.lastTransition = d.now()
		c.mu.Unlock()

		switch {
		case alive && !c.alive:
			d.metrics.ChainStarted()
			d.live.Add(1)
		case !alive && c.alive:
			d.metrics.ChainEnded()
			d.live.Add(-1)
		}
		c.alive = alive
	}
}

// feed runs one message through the chain. A panic escaping the chain (for
// example from a hook) is contained so the claim is always released.
func (d *Dispatcher) feed(c *container, p pending) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("chain panicked outside step logic", "chain", c.id.String(), "panic", r)
			alive = c.chain.Alive()
		}
	}()
	return c.chain.Received(p.env, p.msg)
}

// unindex drops a finished container from the index. The caller holds c.mu,
// so a racing Handle either sees removed or a fresh container.
func (d *Dispatcher) unindex(c *container) {
	if d.shardFor(c.id).remove(c) {
		d.metrics.SetTracked(d.tracked.Add(-1))
		return
	}
	d.logger.Error("registry invariant violated: container missing from index",
		"chain", c.id.String(),
		"handle", c.handle,
	)
}

// archive hands a copy of the chain's history to the archiver.
func (d *Dispatcher) archive(c *container) {
	if d.archiver == nil {
		return
	}
	if history := c.chain.History(); len(history) > 0 {
		d.archiver.submit(c.id, history)
	}
}

// purge evicts idle chains beyond capacity. It is cheap when under capacity.
func (d *Dispatcher) purge(env domain.Env) {
	if d.idle.Len() <= d.capacity {
		return
	}
	victims := d.idle.popOver(d.capacity)
	for _, v := range victims {
		d.evict(env, v)
	}
	d.metrics.SetIdle(int64(d.idle.Len()))
}

func (d *Dispatcher) evict(env domain.Env, v idleEntry) {
	c := d.lookup(v.id, false)
	if c == nil || c.handle != v.handle {
		// Terminated and replaced after it was ranked.
		d.logger.Debug("idle chain already gone", "chain", v.id.String(), "handle", v.handle)
		return
	}

	c.mu.Lock()
	if c.working || c.removed || !c.idle || c.idleSeq != v.seq {
		// Claimed (or re-queued) after it was ranked; the claim wins.
		c.mu.Unlock()
		return
	}
	c.idle = false
	c.removed = true
	d.unindex(c)
	priority := c.priority
	c.mu.Unlock()

	step := c.chain.StepName()
	if c.chain.Lost(env) {
		d.metrics.ChainEnded()
		d.live.Add(-1)
	}
	d.archive(c)

	if priority > domain.PriorityExpendable {
		d.logger.Warn("capacity emergency: evicted live chain",
			"chain", c.id.String(),
			"step", step,
			"priority", priority.String(),
			"capacity", d.capacity,
		)
	} else {
		d.logger.Debug("evicted idle chain", "chain", c.id.String(), "step", step)
	}

	if d.hooks.OnEvict != nil {
		d.hooks.OnEvict(envContext(env), &domain.EvictEvent{
			EventBase: domain.EventBase{Timestamp: d.now(), Type: domain.EventEvict, Chain: c.id},
			Step:      step,
			Priority:  priority,
		})
	}
}

// Describe reports the current step of a chain and, when history is enabled,
// its transitions. Unknown chains report NoInformation, followed by the
// archived history when a store is configured.
func (d *Dispatcher) Describe(ctx context.Context, id domain.ChainID) string {
	if c := d.lookup(id, false); c != nil {
		return c.chain.Describe()
	}
	if d.store == nil {
		return NoInformation
	}

	history, err := d.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrHistoryNotFound) {
			d.logger.Warn("failed to load archived history", "chain", id.String(), "err", err)
		}
		return NoInformation
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (archived)\n", id, NoInformation)
	for _, h := range history {
		fmt.Fprintf(&b, "  %s\n", h)
	}
	return b.String()
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Live     int64 `json:"live"`
	Tracked  int64 `json:"tracked"`
	Idle     int   `json:"idle"`
	Capacity int   `json:"capacity"`
	Shards   int   `json:"shards"`
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Live:     d.live.Load(),
		Tracked:  d.tracked.Load(),
		Idle:     d.idle.Len(),
		Capacity: d.capacity,
		Shards:   len(d.shards),
	}
}

// LiveChains returns the number of chains that have started and not ended.
func (d *Dispatcher) LiveChains() int64 {
	return d.live.Load()
}

// Tracked returns the number of containers in the index.
func (d *Dispatcher) Tracked() int64 {
	return d.tracked.Load()
}

// Idle returns the number of chains eligible for eviction.
func (d *Dispatcher) Idle() int {
	return d.idle.Len()
}

// Capacity returns the configured idle limit.
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

func envContext(env domain.Env) context.Context {
	if env == nil {
		return context.Background()
	}
	return env.Context()
}
