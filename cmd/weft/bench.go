package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/cli"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/pkg/protocol/probe"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive a local node with loopback probes",
		Long: `Creates an in-process node, opens --chains probe chains against a loopback
transport and reports how they ended. With --loss some attempts time out and
are retried; with a small --capacity idle chains are evicted and reported as lost.`,
		RunE: runBench,
	}
	cmd.Flags().Int("chains", 10000, "Number of probe chains")
	cmd.Flags().Int("concurrency", 8, "Concurrent submitters")
	cmd.Flags().Duration("latency", 0, "Loopback answer latency")
	cmd.Flags().Int("loss", 0, "Percentage of attempts answered with a timeout")
	cmd.Flags().Int("attempts", probe.DefaultMaxAttempts, "Attempts per probe before giving up")
	cmd.Flags().Int("capacity", 0, "Idle chains kept before eviction; overrides capacity")
	cmd.Flags().Bool("quiet", false, "Do not print the banner")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("capacity") {
		cfg.Capacity, _ = cmd.Flags().GetInt("capacity")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := cli.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := cli.BenchOptions{Config: cfg, Logger: logger}
	opts.Chains, _ = cmd.Flags().GetInt("chains")
	opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	opts.Latency, _ = cmd.Flags().GetDuration("latency")
	opts.Loss, _ = cmd.Flags().GetInt("loss")
	opts.MaxAttempts, _ = cmd.Flags().GetInt("attempts")

	out := cmd.OutOrStdout()
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		tui.PrintBanner(out, strings.TrimSpace(weft.Version))
	}

	report, err := cli.RunBench(cmd.Context(), opts)
	if err != nil {
		return err
	}

	tui.PrintSummary(out, "run", []tui.Row{
		{Label: "chains", Value: fmt.Sprintf("%d", report.Chains)},
		{Label: "elapsed", Value: tui.Duration(report.Elapsed)},
		{Label: "throughput", Value: fmt.Sprintf("%.0f probes/s", report.Throughput())},
	})

	counts := make(map[string]int64, cli.StatusCount)
	for status, n := range report.Outcomes {
		counts[status.String()] = n
	}
	tui.PrintSummary(out, "outcomes", tui.CountRows(counts, func(label string) bool {
		return label != probe.StatusAnswered.String()
	}))

	tui.PrintSummary(out, "dispatcher", []tui.Row{
		{Label: "live", Value: fmt.Sprintf("%d", report.Stats.Live), Warn: report.Stats.Live > 0},
		{Label: "tracked", Value: fmt.Sprintf("%d", report.Stats.Tracked)},
		{Label: "idle", Value: fmt.Sprintf("%d", report.Stats.Idle)},
		{Label: "capacity", Value: fmt.Sprintf("%d", report.Stats.Capacity)},
		{Label: "shards", Value: fmt.Sprintf("%d", report.Stats.Shards)},
	})
	return nil
}
