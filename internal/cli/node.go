package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/file"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/config"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// NodeOptions holds what the CLI knows when it builds a node.
type NodeOptions struct {
	Config     config.Config
	Logger     *slog.Logger
	Registry   prometheus.Registerer
	ArchiveDir string
	Name       string
}

// NewLogger builds the CLI logger for a configured level.
func NewLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

// OpenArchive picks the history store: redis when configured, a directory
// when given, memory when history is on, none otherwise. Redaction and
// encryption from the archive section wrap whichever store is picked.
// The closer is never nil.
func OpenArchive(cfg config.Config, dir string) (ports.HistoryStore, io.Closer, error) {
	active, fallback, err := cfg.Archive.Keys()
	if err != nil {
		return nil, noClose{}, err
	}

	var (
		store  ports.HistoryStore
		closer io.Closer = noClose{}
	)
	switch {
	case cfg.Redis.Addr != "":
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		store, closer = rs, rs
	case dir != "":
		store = file.New(dir)
	case cfg.HistoryDepth() > 0:
		store = memory.NewStore()
	default:
		return nil, closer, nil
	}

	var mws []middleware.Middleware
	if len(cfg.Archive.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Archive.Redact))
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Wrap(store, mws...), closer, nil
}

type noClose struct{}

func (noClose) Close() error { return nil }

// BuildNode creates a node and its archive from the configuration.
func BuildNode(opts NodeOptions) (*weft.Node, io.Closer, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, nil, err
	}

	archive, closer, err := OpenArchive(opts.Config, opts.ArchiveDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history archive: %w", err)
	}

	nodeOpts := []weft.Option{
		weft.WithConfig(opts.Config),
		weft.WithLogger(opts.Logger),
		weft.WithName(opts.Name),
	}
	if archive != nil {
		nodeOpts = append(nodeOpts, weft.WithHistoryStore(archive))
	}
	if opts.Registry != nil {
		nodeOpts = append(nodeOpts, weft.WithMetrics(observability.NewMetrics(opts.Registry)))
	}

	node, err := weft.New(nodeOpts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, fmt.Errorf("error initializing node: %w", err)
	}
	return node, closer, nil
}
