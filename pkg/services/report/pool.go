package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

type PoolConfig struct {
	Workers     int
	QueueSize   int
	JobDeadline time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Workers:     4,
		QueueSize:   256,
		JobDeadline: 2 * time.Minute,
	}
}

// Pool fans queued job ids out to a fixed set of workers. Each job runs
// under its own deadline so one pathological upload cannot hold a worker
// forever.
type Pool struct {
	orchestrator *Orchestrator
	jobs         jobstore.Store
	log          zerolog.Logger
	queue        chan string
	workers      int
	jobDeadline  time.Duration
	wg           sync.WaitGroup
}

func NewPool(orchestrator *Orchestrator, jobs jobstore.Store, log zerolog.Logger, config PoolConfig) *Pool {
	defaults := DefaultPoolConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.JobDeadline <= 0 {
		config.JobDeadline = defaults.JobDeadline
	}
	return &Pool{
		orchestrator: orchestrator,
		jobs:         jobs,
		log:          log,
		queue:        make(chan string, config.QueueSize),
		workers:      config.Workers,
		jobDeadline:  config.JobDeadline,
	}
}

// Start launches the workers and requeues jobs that were pending when the
// previous process stopped. Workers drain until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) error {
	pending, err := p.jobs.ListByState(ctx, domain.JobStatePending)
	if err != nil {
		return fmt.Errorf("list pending jobs: %w", err)
	}
	for _, id := range pending {
		p.Enqueue(id)
	}
	if len(pending) > 0 {
		p.log.Info().Int("count", len(pending)).Msg("requeued pending jobs from previous run")
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")
	return nil
}

// Enqueue never blocks the caller. A full queue only delays the job: it
// stays pending and the sweeper requeues it on a later pass.
func (p *Pool) Enqueue(id string) {
	select {
	case p.queue <- id:
	default:
		p.log.Warn().Str("job_id", id).Msg("queue full, job stays pending until the next sweep")
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, n int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", n).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			p.run(ctx, log, jobID)
		}
	}
}

func (p *Pool) run(ctx context.Context, log zerolog.Logger, jobID string) {
	jobCtx, cancel := context.WithTimeout(ctx, p.jobDeadline)
	defer cancel()
	jobCtx = log.WithContext(jobCtx)

	start := time.Now()
	if err := p.orchestrator.Process(jobCtx, jobID); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Dur("elapsed", time.Since(start)).Msg("job processing failed")
		return
	}
	log.Debug().Str("job_id", jobID).Dur("elapsed", time.Since(start)).Msg("job processing finished")
}
