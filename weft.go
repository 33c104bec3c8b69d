package weft

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/config"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/ports"
)

// Node is the high-level entry point: one chain registry plus the
// environment handed to every step.
type Node struct {
	dispatcher *dispatch.Dispatcher
	env        domain.Env
	logger     *slog.Logger
	store      ports.HistoryStore

	ctx          context.Context
	capacity     int
	shards       int
	historyLimit int
	metrics      *observability.Metrics
	hooks        domain.LifecycleHooks
	name         string
}

// Option defines a functional option for configuring the Node.
type Option func(*Node)

// WithLogger sets the structured logger of the node and its chains.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithContext sets the context exposed to steps through Env.
func WithContext(ctx context.Context) Option {
	return func(n *Node) {
		n.ctx = ctx
	}
}

// WithCapacity sets the number of idle chains kept before eviction.
func WithCapacity(capacity int) Option {
	return func(n *Node) {
		n.capacity = capacity
	}
}

// WithShards sets the number of index buckets.
func WithShards(shards int) Option {
	return func(n *Node) {
		n.shards = shards
	}
}

// WithHistory keeps the last limit transitions of every chain for Describe.
func WithHistory(limit int) Option {
	return func(n *Node) {
		n.historyLimit = limit
	}
}

// WithHistoryStore archives histories of finished chains.
func WithHistoryStore(store ports.HistoryStore) Option {
	return func(n *Node) {
		n.store = store
	}
}

// WithMetrics exports registry metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(n *Node) {
		n.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(n *Node) {
		n.hooks = hooks
	}
}

// WithConfig applies the registry settings of cfg. Options after it override.
func WithConfig(cfg config.Config) Option {
	return func(n *Node) {
		n.capacity = cfg.Capacity
		n.shards = cfg.Shards
		n.historyLimit = cfg.HistoryDepth()
	}
}

// WithName labels the node in logs.
func WithName(name string) Option {
	return func(n *Node) {
		n.name = name
	}
}

// New creates a Node.
func New(opts ...Option) (*Node, error) {
	n := &Node{
		ctx:      context.Background(),
		capacity: dispatch.DefaultCapacity,
		shards:   dispatch.DefaultShards,
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.capacity < 0 {
		return nil, fmt.Errorf("capacity must not be negative, got %d", n.capacity)
	}
	if n.shards < 1 {
		return nil, fmt.Errorf("shards must be at least 1, got %d", n.shards)
	}
	if n.historyLimit < 0 {
		return nil, fmt.Errorf("history limit must not be negative, got %d", n.historyLimit)
	}

	if n.logger == nil {
		n.logger = logging.NewNop()
	}
	if n.name != "" {
		n.logger = n.logger.With("node", n.name)
	}

	n.env = domain.NewEnv(n.ctx, n.logger)
	n.dispatcher = dispatch.New(
		dispatch.WithCapacity(n.capacity),
		dispatch.WithShards(n.shards),
		dispatch.WithLogger(n.logger),
		dispatch.WithMetrics(n.metrics),
		dispatch.WithLifecycleHooks(observability.Chain(observability.Hooks(nil, n.logger), n.hooks)),
		dispatch.WithHistory(n.historyLimit),
		dispatch.WithHistoryStore(n.store),
	)
	return n, nil
}

// Handle delivers msg to its chain. It returns once msg is processed or
// queued behind the goroutine already driving that chain.
func (n *Node) Handle(msg domain.Message) bool {
	return n.dispatcher.Handle(n.env, msg)
}

// HandleFast delivers msg only if it can run right now on the caller's
// goroutine. On false nothing happened and the caller should use Handle.
func (n *Node) HandleFast(msg domain.Message) bool {
	return n.dispatcher.HandleFast(n.env, msg)
}

// Describe reports what the node knows about a chain.
func (n *Node) Describe(ctx context.Context, id domain.ChainID) string {
	return n.dispatcher.Describe(ctx, id)
}

// Stats returns registry counters.
func (n *Node) Stats() dispatch.Stats {
	return n.dispatcher.Stats()
}

// Flush waits until histories of chains removed so far are archived.
func (n *Node) Flush(ctx context.Context) error {
	return n.dispatcher.Flush(ctx)
}

// Close writes pending histories and stops archiving.
func (n *Node) Close() {
	n.dispatcher.Close()
}

// Name returns the label set by WithName.
func (n *Node) Name() string {
	return n.name
}

// Env returns the environment handed to steps.
func (n *Node) Env() domain.Env {
	return n.env
}

// Dispatcher returns the underlying registry.
func (n *Node) Dispatcher() *dispatch.Dispatcher {
	return n.dispatcher
}

// Archive returns the history store, or nil.
func (n *Node) Archive() ports.HistoryStore {
	return n.store
}

// Logger returns the node logger.
func (n *Node) Logger() *slog.Logger {
	return n.logger
}
