package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/models/store"
	"github.com/de-tools/data-profiler/pkg/services/profiler"
	"github.com/de-tools/data-profiler/pkg/store/duckdb/jobs"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Runner produces the report of a single job.
type Runner struct {
	job      *domain.Job
	jobStore jobs.Store
	profiler profiler.Profiler
	writer   ReportWriter
	sem      *semaphore.Weighted
	done     chan struct{}
	config   RunnerConfig
}

type RunnerConfig struct {
	Timeout time.Duration
}

func NewRunner(
	job *domain.Job,
	jobStore jobs.Store,
	prof profiler.Profiler,
	writer ReportWriter,
	sem *semaphore.Weighted,
	config RunnerConfig,
) *Runner {
	return &Runner{
		job:      job,
		jobStore: jobStore,
		profiler: prof,
		writer:   writer,
		sem:      sem,
		done:     make(chan struct{}),
		config:   config,
	}
}

func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Run never returns an error: failures are logged and recorded on the job.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	logger := zerolog.Ctx(ctx).With().
		Str("job_id", r.job.ID).
		Str("filename", r.job.Filename).
		Logger()
	ctx = logger.WithContext(ctx)
	id := store.JobIdentity{ID: r.job.ID}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.fail(ctx, reasonCancelled)
		return
	}
	defer r.sem.Release(1)

	if err := r.jobStore.MarkRunning(ctx, id, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Msg("failed to mark job running")
		r.fail(ctx, err.Error())
		return
	}
	logger.Info().Msg("report generation started")

	if err := r.generate(ctx); err != nil {
		logger.Error().Err(err).Msg("report generation failed")
		r.fail(ctx, failureReason(err))
		return
	}

	if err := r.jobStore.MarkDone(context.WithoutCancel(ctx), id, time.Now().UTC()); err != nil {
		logger.Error().Err(err).Msg("failed to mark job done")
		return
	}
	logger.Info().Msg("report generation finished")
}

func (r *Runner) generate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	rep, err := r.profiler.Profile(ctx, profiler.Source{
		Name: r.job.Filename,
		Path: r.job.SourcePath,
	})
	if err != nil {
		return fmt.Errorf("profile %s: %w", r.job.Filename, err)
	}

	if err := r.writer.Write(ctx, rep, filepath.Base(r.job.HTMLPath), filepath.Base(r.job.JSONPath)); err != nil {
		return fmt.Errorf("write reports: %w", err)
	}
	return nil
}

// fail records reason on the job. It uses a context that survives
// cancellation so shutdowns still leave a terminal status behind.
func (r *Runner) fail(ctx context.Context, reason string) {
	err := r.jobStore.MarkFailed(context.WithoutCancel(ctx), store.JobIdentity{ID: r.job.ID}, time.Now().UTC(), reason)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("reason", reason).Msg("failed to mark job failed")
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return reasonCancelled
	}
	return err.Error()
}
