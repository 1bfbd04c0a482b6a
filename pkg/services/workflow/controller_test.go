package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/models/store"
	"github.com/de-tools/data-profiler/pkg/services/profiler"
	"github.com/de-tools/data-profiler/pkg/store/duckdb/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memStore is a jobs.Store keeping jobs in a map with the same transition
// rules as the DuckDB store.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*store.Job
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*store.Job)}
}

func (s *memStore) CreateJob(_ context.Context, job *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("duplicate job %s", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) GetJob(_ context.Context, id store.JobIdentity) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, id.ID)
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) ListJobs(_ context.Context, statuses []string) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Job
	for _, j := range s.jobs {
		if len(statuses) > 0 && !contains(statuses, j.Status) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *memStore) transition(id string, from []string, fn func(j *store.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || !contains(from, j.Status) {
		return fmt.Errorf("%w: %s (or invalid transition)", jobs.ErrJobNotFound, id)
	}
	fn(j)
	return nil
}

func (s *memStore) MarkRunning(_ context.Context, id store.JobIdentity, at time.Time) error {
	return s.transition(id.ID, []string{"queued"}, func(j *store.Job) {
		j.Status = "running"
		j.StartedAt = &at
	})
}

func (s *memStore) MarkDone(_ context.Context, id store.JobIdentity, at time.Time) error {
	return s.transition(id.ID, []string{"running"}, func(j *store.Job) {
		j.Status = "done"
		j.FinishedAt = &at
	})
}

func (s *memStore) MarkFailed(_ context.Context, id store.JobIdentity, at time.Time, reason string) error {
	return s.transition(id.ID, []string{"queued", "running"}, func(j *store.Job) {
		j.Status = "failed"
		j.Error = &reason
		j.FinishedAt = &at
	})
}

func (s *memStore) FailUnfinished(_ context.Context, at time.Time, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status == "queued" || j.Status == "running" {
			j.Status = "failed"
			j.Error = &reason
			j.FinishedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// stubProfiler blocks until release is closed when it is set.
type stubProfiler struct {
	release chan struct{}
	started chan string
	err     error
}

func (p *stubProfiler) Profile(ctx context.Context, src profiler.Source) (*domain.Report, error) {
	if p.started != nil {
		p.started <- src.Name
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.Report{Title: "Data Report", Source: src.Name}, nil
}

type recordingWriter struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (w *recordingWriter) Write(_ context.Context, _ *domain.Report, htmlName, jsonName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, [2]string{htmlName, jsonName})
	return w.err
}

func (w *recordingWriter) Calls() [][2]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][2]string(nil), w.calls...)
}

func testUpload(name string) domain.Upload {
	return domain.Upload{
		Filename:   name,
		SourcePath: "uploads/" + name,
		HTMLPath:   "uploads/" + name + "_report.html",
		JSONPath:   "uploads/" + name + "_report.json",
	}
}

func waitStatus(t *testing.T, ctrl *DefaultController, id string, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		j, err := ctrl.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func shutdown(t *testing.T, ctrl *DefaultController) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ctrl.Shutdown(ctx))
}

func TestController_SubmitGeneratesReports(t *testing.T) {
	writer := &recordingWriter{}
	ctrl := NewController(newMemStore(), &stubProfiler{}, writer, Config{})
	defer shutdown(t, ctrl)

	job, err := ctrl.Submit(context.Background(), testUpload("data.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)

	done := waitStatus(t, ctrl, job.ID, domain.JobStatusDone)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.FinishedAt)
	assert.Nil(t, done.Error)
	assert.Equal(t, [][2]string{{"data.csv_report.html", "data.csv_report.json"}}, writer.Calls())
}

func TestController_SubmitLogsUploadSize(t *testing.T) {
	var logs bytes.Buffer
	ctx := zerolog.New(zerolog.SyncWriter(&logs)).WithContext(context.Background())

	ctrl := NewController(newMemStore(), &stubProfiler{}, &recordingWriter{}, Config{})
	upload := testUpload("data.csv")
	upload.Size = 2048

	job, err := ctrl.Submit(ctx, upload)
	require.NoError(t, err)
	waitStatus(t, ctrl, job.ID, domain.JobStatusDone)
	shutdown(t, ctrl)

	assert.Contains(t, logs.String(), `"size":2048`)
	assert.Contains(t, logs.String(), `"job_id":"`+job.ID+`"`)
}

func TestController_ProfileFailure(t *testing.T) {
	prof := &stubProfiler{err: profiler.ErrNotCSV}
	writer := &recordingWriter{}
	ctrl := NewController(newMemStore(), prof, writer, Config{})
	defer shutdown(t, ctrl)

	job, err := ctrl.Submit(context.Background(), testUpload("bad.csv"))
	require.NoError(t, err)

	failed := waitStatus(t, ctrl, job.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "not valid CSV")
	assert.Empty(t, writer.Calls())
}

func TestController_WriteFailure(t *testing.T) {
	writer := &recordingWriter{err: errors.New("disk full")}
	ctrl := NewController(newMemStore(), &stubProfiler{}, writer, Config{})
	defer shutdown(t, ctrl)

	job, err := ctrl.Submit(context.Background(), testUpload("data.csv"))
	require.NoError(t, err)

	failed := waitStatus(t, ctrl, job.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Contains(t, *failed.Error, "disk full")
}

func TestController_WorkerLimit(t *testing.T) {
	prof := &stubProfiler{release: make(chan struct{}), started: make(chan string, 2)}
	ctrl := NewController(newMemStore(), prof, &recordingWriter{}, Config{Workers: 1})
	defer shutdown(t, ctrl)

	first, err := ctrl.Submit(context.Background(), testUpload("a.csv"))
	require.NoError(t, err)
	second, err := ctrl.Submit(context.Background(), testUpload("b.csv"))
	require.NoError(t, err)

	started := <-prof.started
	waitingID := second.ID
	if started == "b.csv" {
		waitingID = first.ID
	}

	waiting, err := ctrl.Get(context.Background(), waitingID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, waiting.Status)

	queued, err := ctrl.List(context.Background(), []domain.JobStatus{domain.JobStatusQueued})
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	close(prof.release)
	<-prof.started
	waitStatus(t, ctrl, first.ID, domain.JobStatusDone)
	waitStatus(t, ctrl, second.ID, domain.JobStatusDone)

	all, err := ctrl.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestController_Timeout(t *testing.T) {
	prof := &stubProfiler{release: make(chan struct{})}
	ctrl := NewController(newMemStore(), prof, &recordingWriter{}, Config{JobTimeout: 20 * time.Millisecond})
	defer shutdown(t, ctrl)

	job, err := ctrl.Submit(context.Background(), testUpload("slow.csv"))
	require.NoError(t, err)

	failed := waitStatus(t, ctrl, job.ID, domain.JobStatusFailed)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "timed out", *failed.Error)
}

func TestController_Cancel(t *testing.T) {
	prof := &stubProfiler{release: make(chan struct{}), started: make(chan string, 1)}
	ctrl := NewController(newMemStore(), prof, &recordingWriter{}, Config{})
	defer shutdown(t, ctrl)

	job, err := ctrl.Submit(context.Background(), testUpload("data.csv"))
	require.NoError(t, err)
	<-prof.started

	require.NoError(t, ctrl.Cancel(context.Background(), job.ID))
	failed := waitStatus(t, ctrl, job.ID, domain.JobStatusFailed)
	assert.Equal(t, reasonCancelled, *failed.Error)

	err = ctrl.Cancel(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrJobNotRunning)
}

func TestController_ShutdownCancelsRunners(t *testing.T) {
	prof := &stubProfiler{release: make(chan struct{}), started: make(chan string, 1)}
	ctrl := NewController(newMemStore(), prof, &recordingWriter{}, Config{Workers: 1})

	running, err := ctrl.Submit(context.Background(), testUpload("a.csv"))
	require.NoError(t, err)
	<-prof.started
	queued, err := ctrl.Submit(context.Background(), testUpload("b.csv"))
	require.NoError(t, err)

	shutdown(t, ctrl)

	for _, id := range []string{running.ID, queued.ID} {
		j, err := ctrl.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, j.Status)
		require.NotNil(t, j.Error)
		assert.Equal(t, reasonCancelled, *j.Error)
	}

	_, err = ctrl.Submit(context.Background(), testUpload("c.csv"))
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestController_Init(t *testing.T) {
	st := newMemStore()
	require.NoError(t, st.CreateJob(context.Background(), &store.Job{ID: "old", Status: "running"}))
	require.NoError(t, st.CreateJob(context.Background(), &store.Job{ID: "finished", Status: "done"}))

	var logs bytes.Buffer
	ctx := zerolog.New(&logs).WithContext(context.Background())

	ctrl := NewController(st, &stubProfiler{}, &recordingWriter{}, Config{})
	require.NoError(t, ctrl.Init(ctx))
	assert.Contains(t, logs.String(), `"job_ids":["old"]`)

	old, err := ctrl.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, old.Status)
	assert.Equal(t, reasonInterrupted, *old.Error)

	finished, err := ctrl.Get(context.Background(), "finished")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusDone, finished.Status)

	_, err = ctrl.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}
