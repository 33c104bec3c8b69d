package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/pkg/config"
	"github.com/aretw0/weft/pkg/dispatch"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/protocol/probe"
	"golang.org/x/sync/errgroup"
)

// BenchOptions configures a synthetic probe run.
type BenchOptions struct {
	Config      config.Config
	Logger      *slog.Logger
	Chains      int
	Concurrency int
	Latency     time.Duration
	Loss        int
	MaxAttempts int
}

// BenchReport summarizes a run.
type BenchReport struct {
	Chains   int
	Elapsed  time.Duration
	Outcomes map[probe.Status]int64
	Stats    dispatch.Stats
}

// Throughput is completed probes per second.
func (r BenchReport) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	var done int64
	for _, n := range r.Outcomes {
		done += n
	}
	return float64(done) / r.Elapsed.Seconds()
}

// RunBench probes Chains loopback targets through a fresh node and waits
// until every probe has an outcome.
func RunBench(ctx context.Context, opts BenchOptions) (BenchReport, error) {
	if opts.Chains < 0 || opts.Concurrency < 1 {
		return BenchReport{}, fmt.Errorf("invalid bench size: %d chains, concurrency %d", opts.Chains, opts.Concurrency)
	}

	if err := ctx.Err(); err != nil {
		return BenchReport{}, err
	}

	node, closer, err := BuildNode(NodeOptions{Config: opts.Config, Logger: opts.Logger, Name: "bench"})
	if err != nil {
		return BenchReport{}, err
	}
	defer closer.Close()
	defer node.Close()

	g, gctx := errgroup.WithContext(ctx)
	pump := weft.NewPump(node,
		weft.PumpWorkers(opts.Config.Pump.Workers),
		weft.PumpBacklog(opts.Config.Pump.Backlog),
		weft.PumpLogger(opts.Logger),
	)
	loop := NewLoopback(gctx, pump, opts.Latency, opts.Loss)

	var counts [StatusCount]atomic.Int64
	var total atomic.Int64
	done := make(chan struct{})
	if opts.Chains == 0 {
		close(done)
	}
	prober := probe.New(loop,
		probe.WithMaxAttempts(opts.MaxAttempts),
		probe.WithOutcome(func(_ domain.Env, o probe.Outcome) {
			counts[o.Status].Add(1)
			if total.Add(1) == int64(opts.Chains) {
				close(done)
			}
		}),
	)

	g.Go(func() error { return pump.Run(gctx) })

	start := time.Now()
	for w := 0; w < opts.Concurrency; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < opts.Chains; i += opts.Concurrency {
				if err := pump.Submit(gctx, prober.Query(uint64(i+1), fmt.Sprintf("peer-%d", i%16))); err != nil {
					return err
				}
			}
			return nil
		})
	}

	var runErr error
	select {
	case <-done:
	case <-gctx.Done():
		runErr = context.Cause(gctx)
	}
	elapsed := time.Since(start)

	pump.Close()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	loop.Wait()
	if runErr != nil {
		return BenchReport{}, runErr
	}

	report := BenchReport{
		Chains:   opts.Chains,
		Elapsed:  elapsed,
		Outcomes: make(map[probe.Status]int64),
		Stats:    node.Stats(),
	}
	for s := range counts {
		if n := counts[s].Load(); n > 0 {
			report.Outcomes[probe.Status(s)] = n
		}
	}
	return report, nil
}

// StatusCount is the number of probe statuses.
const StatusCount = int(probe.StatusFailed) + 1
