package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"golang.org/x/sync/errgroup"
)

type archiveJob struct {
	id      domain.ChainID
	history []domain.HistoryEntry
	flushed chan struct{}
}

// archiver writes finished histories to the store on its own goroutine so
// the dispatch path never waits on store I/O. A full backlog discards.
type archiver struct {
	store   ports.HistoryStore
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan archiveJob
	group  errgroup.Group
	once   sync.Once
}

func newArchiver(store ports.HistoryStore, backlog int, timeout time.Duration, logger *slog.Logger) *archiver {
	a := &archiver{
		store:   store,
		timeout: timeout,
		logger:  logger,
		jobs:    make(chan archiveJob, backlog),
	}
	a.group.Go(a.run)
	return a
}

// submit queues history without blocking.
func (a *archiver) submit(id domain.ChainID, history []domain.HistoryEntry) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Warn("archive closed, history discarded", "chain", id.String())
		return
	}
	select {
	case a.jobs <- archiveJob{id: id, history: history}:
	default:
		a.logger.Warn("archive backlog full, history discarded", "chain", id.String(), "backlog", cap(a.jobs))
	}
}

// flush waits until every history queued before the call is written.
func (a *archiver) flush(ctx context.Context) error {
	done := make(chan struct{})

	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		return nil
	}
	select {
	case a.jobs <- archiveJob{flushed: done}:
		a.mu.RUnlock()
	case <-ctx.Done():
		a.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close writes what is queued and stops the worker.
func (a *archiver) close() {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.jobs)
		a.mu.Unlock()
	})
	_ = a.group.Wait()
}

func (a *archiver) run() error {
	for job := range a.jobs {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}
		a.save(job)
	}
	return nil
}

func (a *archiver) save(job archiveJob) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Save(ctx, job.id, job.history); err != nil {
		a.logger.Warn("failed to archive chain history", "chain", job.id.String(), "err", err)
	}
}
