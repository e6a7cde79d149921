package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudlens/advisor-hub/pkg/models/domain"
	jobstore "github.com/cloudlens/advisor-hub/pkg/store/duckdb/job"
)

type SweeperConfig struct {
	Interval    time.Duration
	JobDeadline time.Duration
	// GraceFactor scales the deadline into the stuck cutoff, so the worker's
	// own timeout always fires well before the sweep declares the job dead.
	GraceFactor int
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:    30 * time.Second,
		JobDeadline: 2 * time.Minute,
		GraceFactor: 2,
	}
}

// Sweeper is the liveness backstop. It force-fails jobs stuck mid-pipeline
// past the grace window and requeues pending jobs the pool dropped, for
// example when its queue was full or the process restarted.
type Sweeper struct {
	jobs   jobstore.Store
	queue  Enqueuer
	log    zerolog.Logger
	config SweeperConfig
	now    func() time.Time
}

func NewSweeper(jobs jobstore.Store, queue Enqueuer, log zerolog.Logger, config SweeperConfig) *Sweeper {
	defaults := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.JobDeadline <= 0 {
		config.JobDeadline = defaults.JobDeadline
	}
	if config.GraceFactor <= 0 {
		config.GraceFactor = defaults.GraceFactor
	}
	return &Sweeper{
		jobs:   jobs,
		queue:  queue,
		log:    log,
		config: config,
		now:    time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass. Exported so tests and the supervisor CLI can
// trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now().UTC()
	cutoff := now.Add(-s.config.JobDeadline * time.Duration(s.config.GraceFactor))

	stuck, err := s.jobs.ListStuck(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("listing stuck jobs")
	}
	for _, id := range stuck {
		ok, err := s.jobs.FailStuck(ctx, id, domain.ErrorTimeout, now)
		if err != nil {
			s.log.Error().Err(err).Str("job_id", id).Msg("force-failing stuck job")
			continue
		}
		if ok {
			s.log.Warn().Str("job_id", id).Time("cutoff", cutoff).Msg("stuck job failed with timeout")
		}
	}

	// Requeueing an already-running job is harmless: the claim write keyed
	// on the pending state refuses the duplicate.
	pending, err := s.jobs.ListByState(ctx, domain.JobStatePending)
	if err != nil {
		s.log.Error().Err(err).Msg("listing pending jobs")
		return
	}
	for _, id := range pending {
		s.queue.Enqueue(id)
	}
}
