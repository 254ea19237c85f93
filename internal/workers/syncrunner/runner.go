// Package syncrunner claims queued sync jobs and runs a sync cycle for
// each one.
package syncrunner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exposurewatch/internal/domain"
	"exposurewatch/internal/metrics"
	"exposurewatch/internal/ports"
	"exposurewatch/internal/services/reconcile"
)

// KeySyncer runs one sync cycle for a provider key.
type KeySyncer interface {
	Sync(ctx context.Context, key domain.ProviderKey) (reconcile.Result, error)
}

// Job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

type Runner struct {
	repo         ports.JobRepository
	syncer       KeySyncer
	metrics      metrics.JobMetrics
	log          zerolog.Logger
	concurrency  int
	pollInterval time.Duration
}

func New(repo ports.JobRepository, syncer KeySyncer, m metrics.JobMetrics, log zerolog.Logger, concurrency int, pollInterval time.Duration) *Runner {
	if m == nil {
		m = metrics.Nop{}
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Runner{
		repo:         repo,
		syncer:       syncer,
		metrics:      m,
		log:          log.With().Str("component", "syncrunner").Logger(),
		concurrency:  concurrency,
		pollInterval: pollInterval,
	}
}

// Run polls for jobs and hands them to worker goroutines until ctx is
// done. It returns once every worker has finished its current job.
func (r *Runner) Run(ctx context.Context) error {
	if r.concurrency < 1 {
		<-ctx.Done()
		return nil
	}
	jobsCh := make(chan ports.SyncJob, r.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			log := r.log.With().Int("worker", idx).Logger()
			for job := range jobsCh {
				r.process(ctx, job, log)
			}
		}(i)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	r.log.Info().Int("workers", r.concurrency).Dur("poll_interval", r.pollInterval).Msg("sync workers started")
dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case <-ticker.C:
			for {
				job, found, err := r.repo.ClaimNext(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.log.Error().Err(err).Msg("job claim failed")
					}
					break
				}
				if !found {
					break
				}
				select {
				case jobsCh <- job:
				case <-ctx.Done():
					// Claimed but never started.
					r.settle(context.WithoutCancel(ctx), job, ctx.Err(), r.log)
					break dispatch
				}
			}
		}
	}
	close(jobsCh)
	wg.Wait()
	return nil
}

// Drain processes queued jobs inline until none are left and returns how
// many it handled.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	n := 0
	for {
		job, found, err := r.repo.ClaimNext(ctx)
		if err != nil {
			return n, err
		}
		if !found {
			return n, nil
		}
		r.process(ctx, job, r.log)
		n++
	}
}

// process runs the cycle for one job. Provider failures complete the job
// since the sync cycle already recorded them; store failures fail it.
func (r *Runner) process(ctx context.Context, job ports.SyncJob, log zerolog.Logger) {
	log = log.With().Str("job_id", job.ID).Str("provider", string(job.Key.Provider)).Str("provider_key", job.Key.Value).Logger()
	res, err := r.syncer.Sync(ctx, job.Key)
	if err == nil && res.Stale() {
		log.Info().Str("stage", string(res.SourceStage)).Msg("sync job finished with stale data")
	}
	r.settle(ctx, job, err, log)
}

func (r *Runner) settle(ctx context.Context, job ports.SyncJob, syncErr error, log zerolog.Logger) {
	if syncErr != nil {
		r.metrics.IncJobsProcessed(OutcomeFailed)
		log.Error().Err(syncErr).Msg("sync job failed")
		if err := r.repo.MarkFailed(context.WithoutCancel(ctx), job.ID, syncErr.Error()); err != nil {
			log.Error().Err(err).Msg("mark job failed")
		}
		return
	}
	r.metrics.IncJobsProcessed(OutcomeCompleted)
	if err := r.repo.MarkCompleted(ctx, job.ID); err != nil {
		log.Error().Err(err).Msg("mark job completed")
	}
}
