package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/favmirror/internal/domain"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 10

// ErrShutdownTimeout is returned when workers don't stop within timeout.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Source hands out post ids to workers.
type Source interface {
	// Pop blocks until an id is available. It returns an error when ctx is
	// done or the source is closed and drained.
	Pop(ctx context.Context) (domain.ExternalID, error)
}

// Processor runs the per-post pipeline.
type Processor interface {
	Process(ctx context.Context, id domain.ExternalID) error
}

// Pool runs a fixed number of workers draining a shared Source.
type Pool struct {
	workers   int
	source    Source
	processor Processor
	logger    *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker pool configuration.
type Config struct {
	Workers int
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, source Source, processor Processor, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:   cfg.Workers,
		source:    source,
		processor: processor,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals cancellation and waits for every worker to return. Workers
// stop taking new ids immediately; a post already being processed runs to
// completion. A timeout <= 0 waits indefinitely.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-expired:
		return ErrShutdownTimeout
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	for {
		postID, err := p.source.Pop(p.ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrQueueClosed) {
				logger.Error("failed to dequeue post", "error", err)
			}
			logger.Debug("worker stopping")
			return
		}

		p.processPost(logger, postID)
	}
}

// processPost runs the pipeline detached from pool cancellation so that a
// post already dequeued is never interrupted.
func (p *Pool) processPost(logger *slog.Logger, id domain.ExternalID) {
	ctx := context.WithoutCancel(p.ctx)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("post pipeline panicked", "post_id", id, "panic", r)
		}
	}()

	if err := p.processor.Process(ctx, id); err != nil {
		logger.Error("post failed",
			"post_id", id,
			"error", err,
			"permanent", domain.IsPermanent(err),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	}
}
