package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/de-tools/data-profiler/pkg/adapters"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/models/store"
	"github.com/de-tools/data-profiler/pkg/services/profiler"
	"github.com/de-tools/data-profiler/pkg/store/duckdb/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultWorkers    = 4
	DefaultJobTimeout = 10 * time.Minute

	reasonInterrupted = "interrupted"
	reasonCancelled   = "cancelled"
)

var (
	ErrShuttingDown  = errors.New("report controller is shutting down")
	ErrJobNotRunning = errors.New("job is not running")
)

// Controller schedules background report generation for uploaded files.
type Controller interface {
	Submit(ctx context.Context, upload domain.Upload) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, statuses []domain.JobStatus) ([]*domain.Job, error)
	Cancel(ctx context.Context, id string) error
}

// ReportWriter persists a finished report under the given file names.
type ReportWriter interface {
	Write(ctx context.Context, rep *domain.Report, htmlName, jsonName string) error
}

type Config struct {
	Workers    int
	JobTimeout time.Duration
}

type jobDescriptor struct {
	cancelFunc context.CancelFunc
	job        *domain.Job
	runner     *Runner
}

type DefaultController struct {
	jobStore jobs.Store
	profiler profiler.Profiler
	writer   ReportWriter
	sem      *semaphore.Weighted
	config   Config

	mu     sync.Mutex
	jobs   map[string]jobDescriptor
	wg     sync.WaitGroup
	closed bool
}

func NewController(
	jobStore jobs.Store,
	prof profiler.Profiler,
	writer ReportWriter,
	config Config,
) *DefaultController {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultJobTimeout
	}

	return &DefaultController{
		jobStore: jobStore,
		profiler: prof,
		writer:   writer,
		sem:      semaphore.NewWeighted(int64(config.Workers)),
		config:   config,
		jobs:     make(map[string]jobDescriptor),
	}
}

// Init fails jobs a previous process left queued or running. Their runners
// are gone, so they would never finish otherwise.
func (ctrl *DefaultController) Init(ctx context.Context) error {
	var stale []string
	err := ctrl.jobStore.InTransaction(ctx, func(ctx context.Context) error {
		unfinished, err := ctrl.jobStore.ListJobs(ctx, []string{
			string(domain.JobStatusQueued),
			string(domain.JobStatusRunning),
		})
		if err != nil {
			return err
		}
		for _, j := range unfinished {
			stale = append(stale, j.ID)
		}
		_, err = ctrl.jobStore.FailUnfinished(ctx, time.Now().UTC(), reasonInterrupted)
		return err
	})
	if err != nil {
		return fmt.Errorf("fail unfinished jobs: %w", err)
	}
	if len(stale) > 0 {
		zerolog.Ctx(ctx).Warn().Strs("job_ids", stale).Msg("marked interrupted jobs as failed")
	}
	return nil
}

// Submit records a queued job and starts its runner. It returns as soon as
// the job is stored; the report is produced in the background.
func (ctrl *DefaultController) Submit(ctx context.Context, upload domain.Upload) (*domain.Job, error) {
	ctrl.mu.Lock()
	closed := ctrl.closed
	ctrl.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		Filename:   upload.Filename,
		SourcePath: upload.SourcePath,
		HTMLPath:   upload.HTMLPath,
		JSONPath:   upload.JSONPath,
		Status:     domain.JobStatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := ctrl.jobStore.CreateJob(ctx, adapters.MapDomainJobToStore(job)); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := ctrl.startJob(ctx, job); err != nil {
		failErr := ctrl.jobStore.MarkFailed(ctx, store.JobIdentity{ID: job.ID}, time.Now().UTC(), reasonCancelled)
		return nil, errors.Join(err, failErr)
	}
	zerolog.Ctx(ctx).Info().
		Str("job_id", job.ID).
		Str("filename", job.Filename).
		Int64("size", upload.Size).
		Msg("report job queued")
	return job, nil
}

func (ctrl *DefaultController) Get(ctx context.Context, id string) (*domain.Job, error) {
	j, err := ctrl.jobStore.GetJob(ctx, store.JobIdentity{ID: id})
	if err != nil {
		return nil, err
	}
	return adapters.MapStoreJobToDomain(j), nil
}

func (ctrl *DefaultController) List(ctx context.Context, statuses []domain.JobStatus) ([]*domain.Job, error) {
	filter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		filter = append(filter, string(s))
	}

	list, err := ctrl.jobStore.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}

	res := make([]*domain.Job, 0, len(list))
	for _, j := range list {
		res = append(res, adapters.MapStoreJobToDomain(j))
	}
	return res, nil
}

// Cancel stops a queued or running job and waits for its runner to exit.
func (ctrl *DefaultController) Cancel(ctx context.Context, id string) error {
	ctrl.mu.Lock()
	desc, ok := ctrl.jobs[id]
	ctrl.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotRunning, id)
	}

	desc.cancelFunc()
	select {
	case <-desc.runner.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs, cancels every runner and waits for them.
func (ctrl *DefaultController) Shutdown(ctx context.Context) error {
	ctrl.mu.Lock()
	ctrl.closed = true
	for _, desc := range ctrl.jobs {
		desc.cancelFunc()
	}
	ctrl.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ctrl.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for report jobs: %w", ctx.Err())
	}
}

func (ctrl *DefaultController) startJob(ctx context.Context, job *domain.Job) error {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()

	if ctrl.closed {
		return ErrShuttingDown
	}

	// the runner outlives the request that submitted it but keeps its logger
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	runner := NewRunner(job, ctrl.jobStore, ctrl.profiler, ctrl.writer, ctrl.sem, RunnerConfig{
		Timeout: ctrl.config.JobTimeout,
	})
	ctrl.jobs[job.ID] = jobDescriptor{
		cancelFunc: cancel,
		job:        job,
		runner:     runner,
	}

	ctrl.wg.Add(1)
	go func() {
		defer ctrl.wg.Done()
		defer cancel()

		runner.Run(ctx)

		ctrl.mu.Lock()
		delete(ctrl.jobs, job.ID)
		ctrl.mu.Unlock()
	}()
	return nil
}
