package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/cli"
	"github.com/aretw0/weft/internal/presentation/tui"
	wefthttp "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/protocol/probe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a node with its diagnostics endpoint",
		Long: `Starts a dispatch node and, when an address is configured, the read-only
diagnostics endpoint (/stats, /chains/{id}, /archive, /metrics).

The node has no network transport of its own. --selftest keeps it busy with
loopback probes so the endpoint has something to show.`,
		RunE: runServe,
	}
	cmd.Flags().String("diagnostics", "", "Diagnostics listen address; overrides diagnostics.addr")
	cmd.Flags().Int("capacity", 0, "Idle chains kept before eviction; overrides capacity")
	cmd.Flags().Bool("history", false, "Record chain histories; overrides history")
	cmd.Flags().String("archive-dir", "", "Archive finished chain histories as JSON files in this directory")
	cmd.Flags().Duration("selftest", 0, "Send a loopback probe at this interval (0 disables)")
	cmd.Flags().Bool("quiet", false, "Do not print the banner")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("diagnostics") {
		cfg.Diagnostics.Addr, _ = cmd.Flags().GetString("diagnostics")
	}
	if cmd.Flags().Changed("capacity") {
		cfg.Capacity, _ = cmd.Flags().GetInt("capacity")
	}
	if cmd.Flags().Changed("history") {
		cfg.History, _ = cmd.Flags().GetBool("history")
	}
	archiveDir, _ := cmd.Flags().GetString("archive-dir")
	selftest, _ := cmd.Flags().GetDuration("selftest")
	quiet, _ := cmd.Flags().GetBool("quiet")

	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hostname, _ := os.Hostname()
	node, closer, err := cli.BuildNode(cli.NodeOptions{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		ArchiveDir: archiveDir,
		Name:       hostname,
	})
	if err != nil {
		return err
	}
	defer closer.Close()
	defer node.Close()

	var ln net.Listener
	if cfg.Diagnostics.Addr != "" {
		ln, err = net.Listen("tcp", cfg.Diagnostics.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Diagnostics.Addr, err)
		}
	}

	if !quiet && term.IsTerminal(int(os.Stdout.Fd())) {
		tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(weft.Version))
	}

	sc := cli.NewSignalContext(cmd.Context())
	defer sc.Cancel()
	g, ctx := errgroup.WithContext(sc)

	pump := weft.NewPump(node,
		weft.PumpWorkers(cfg.Pump.Workers),
		weft.PumpBacklog(cfg.Pump.Backlog),
		weft.PumpLogger(logger),
	)
	g.Go(func() error { return pump.Run(ctx) })

	if ln != nil {
		handler := wefthttp.NewHandler(node,
			wefthttp.WithArchive(node.Archive()),
			wefthttp.WithGatherer(reg),
			wefthttp.WithLogger(logger),
		)
		g.Go(func() error { return cli.ServeDiagnostics(ctx, ln, handler, logger) })
	}

	if selftest > 0 {
		loop := cli.NewLoopback(ctx, pump, 10*time.Millisecond, 0)
		prober := probe.New(loop, probe.WithOutcome(func(env domain.Env, o probe.Outcome) {
			env.Logger().Debug("selftest probe finished", "chain", o.Chain.String(), "status", o.Status.String())
		}))
		g.Go(func() error { return selfTest(ctx, pump, prober, selftest) })
	}

	logger.Info("node started",
		"version", strings.TrimSpace(weft.Version),
		"capacity", cfg.Capacity,
		"shards", cfg.Shards,
		"history", cfg.HistoryDepth(),
		"diagnostics", cfg.Diagnostics.Addr,
	)

	<-ctx.Done()
	pump.Close()
	err = g.Wait()
	if sig := sc.Signal(); sig != nil {
		logger.Info("node stopped", "signal", sig.String(), "stats", node.Stats())
	}
	if err != nil && !isShutdown(err) {
		return err
	}
	return nil
}

func selfTest(ctx context.Context, pump *weft.Pump, prober *probe.Prober, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var id uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			id++
			if err := pump.Submit(ctx, prober.Query(id, "self")); err != nil {
				if isShutdown(err) {
					return nil
				}
				return err
			}
		}
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, weft.ErrPumpClosed)
}
