package jobs

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/de-tools/data-profiler/pkg/models/store"
	"github.com/de-tools/data-profiler/pkg/store/duckdb"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db    *sql.DB
	store Store
}

func setupTestDB(t *testing.T) *sql.DB {
	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	return db
}

func setupFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	store, err := NewStore(db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return &fixture{
		db:    db,
		store: store,
	}
}

func newJob(id, filename string) *store.Job {
	return &store.Job{
		ID:         id,
		Filename:   filename,
		SourcePath: "uploads/" + filename,
		HTMLPath:   "uploads/" + filename + "_report.html",
		JSONPath:   "uploads/" + filename + "_report.json",
		Status:     "queued",
	}
}

func TestNewStore(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := setupFixture(t)
		assert.NotNil(t, f.store)
	})

	t.Run("nil db", func(t *testing.T) {
		store, err := NewStore(nil)
		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestStore_CreateJob(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		job := newJob("job-1", "sales.csv")
		require.NoError(t, f.store.CreateJob(ctx, job))
		assert.False(t, job.CreatedAt.IsZero())

		got, err := f.store.GetJob(ctx, store.JobIdentity{ID: "job-1"})
		require.NoError(t, err)
		assert.Equal(t, "sales.csv", got.Filename)
		assert.Equal(t, "uploads/sales.csv_report.html", got.HTMLPath)
		assert.Equal(t, "queued", got.Status)
		assert.Nil(t, got.Error)
		assert.Nil(t, got.StartedAt)
		assert.Nil(t, got.FinishedAt)
	})

	t.Run("duplicate id", func(t *testing.T) {
		require.NoError(t, f.store.CreateJob(ctx, newJob("job-dup", "a.csv")))
		assert.Error(t, f.store.CreateJob(ctx, newJob("job-dup", "a.csv")))
	})

	t.Run("missing id", func(t *testing.T) {
		assert.Error(t, f.store.CreateJob(ctx, &store.Job{Filename: "a.csv"}))
	})
}

func TestStore_GetJob_NotFound(t *testing.T) {
	f := setupFixture(t)

	_, err := f.store.GetJob(context.Background(), store.JobIdentity{ID: "nope"})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStore_ListJobs(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateJob(ctx, newJob("job-1", "a.csv")))
	require.NoError(t, f.store.CreateJob(ctx, newJob("job-2", "b.csv")))
	require.NoError(t, f.store.MarkRunning(ctx, store.JobIdentity{ID: "job-2"}, time.Now().UTC()))

	t.Run("list all jobs", func(t *testing.T) {
		jobs, err := f.store.ListJobs(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})

	t.Run("list by status", func(t *testing.T) {
		jobs, err := f.store.ListJobs(ctx, []string{"running"})
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-2", jobs[0].ID)
		assert.NotNil(t, jobs[0].StartedAt)
	})

	t.Run("list by unknown status", func(t *testing.T) {
		jobs, err := f.store.ListJobs(ctx, []string{"done"})
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestStore_Transitions(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	id := store.JobIdentity{ID: "job-1"}

	require.NoError(t, f.store.CreateJob(ctx, newJob(id.ID, "a.csv")))

	t.Run("done requires running", func(t *testing.T) {
		err := f.store.MarkDone(ctx, id, time.Now().UTC())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("queued to running to done", func(t *testing.T) {
		started := time.Now().UTC()
		require.NoError(t, f.store.MarkRunning(ctx, id, started))
		require.NoError(t, f.store.MarkDone(ctx, id, started.Add(time.Second)))

		got, err := f.store.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "done", got.Status)
		require.NotNil(t, got.StartedAt)
		require.NotNil(t, got.FinishedAt)
		assert.Equal(t, started.Unix(), got.StartedAt.Unix())
	})

	t.Run("finished job cannot fail", func(t *testing.T) {
		err := f.store.MarkFailed(ctx, id, time.Now().UTC(), "late")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("failed keeps reason", func(t *testing.T) {
		other := store.JobIdentity{ID: "job-2"}
		require.NoError(t, f.store.CreateJob(ctx, newJob(other.ID, "b.csv")))
		require.NoError(t, f.store.MarkFailed(ctx, other, time.Now().UTC(), "boom"))

		got, err := f.store.GetJob(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, "failed", got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "boom", *got.Error)
	})
}

func TestStore_FailUnfinished(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.CreateJob(ctx, newJob("job-1", "a.csv")))
	require.NoError(t, f.store.CreateJob(ctx, newJob("job-2", "b.csv")))
	require.NoError(t, f.store.CreateJob(ctx, newJob("job-3", "c.csv")))
	now := time.Now().UTC()
	require.NoError(t, f.store.MarkRunning(ctx, store.JobIdentity{ID: "job-2"}, now))
	require.NoError(t, f.store.MarkRunning(ctx, store.JobIdentity{ID: "job-3"}, now))
	require.NoError(t, f.store.MarkDone(ctx, store.JobIdentity{ID: "job-3"}, now))

	n, err := f.store.FailUnfinished(ctx, now, "interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	failed, err := f.store.ListJobs(ctx, []string{"failed"})
	require.NoError(t, err)
	assert.Len(t, failed, 2)
}

func TestStore_WithTransaction(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	txCtx := duckdb.WithTransaction(ctx, tx)

	require.NoError(t, f.store.CreateJob(txCtx, newJob("job-tx", "a.csv")))
	require.NoError(t, tx.Rollback())

	_, err = f.store.GetJob(ctx, store.JobIdentity{ID: "job-tx"})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStore_InTransaction(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	t.Run("commits", func(t *testing.T) {
		err := f.store.InTransaction(ctx, func(ctx context.Context) error {
			require.NotNil(t, duckdb.GetTransaction(ctx))
			require.NoError(t, f.store.CreateJob(ctx, newJob("job-commit", "a.csv")))
			_, err := f.store.FailUnfinished(ctx, time.Now().UTC(), "interrupted")
			return err
		})
		require.NoError(t, err)

		job, err := f.store.GetJob(ctx, store.JobIdentity{ID: "job-commit"})
		require.NoError(t, err)
		assert.Equal(t, "failed", job.Status)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := f.store.InTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, f.store.CreateJob(ctx, newJob("job-rollback", "b.csv")))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = f.store.GetJob(ctx, store.JobIdentity{ID: "job-rollback"})
		assert.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestStore_QueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("list propagates query error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + jobColumns + ` FROM report_jobs WHERE status IN (?)`)).
			WithArgs("queued").
			WillReturnError(sql.ErrConnDone)

		_, err := s.ListJobs(ctx, []string{"queued"})
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("get propagates scan error", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM report_jobs WHERE id = ?`)).
			WithArgs("job-1").
			WillReturnError(sql.ErrTxDone)

		_, err := s.GetJob(ctx, store.JobIdentity{ID: "job-1"})
		assert.ErrorIs(t, err, sql.ErrTxDone)
		assert.NotErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("zero rows affected is not found", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE report_jobs SET status = 'running'`)).
			WithArgs(sqlmock.AnyArg(), "job-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.MarkRunning(ctx, store.JobIdentity{ID: "job-1"}, time.Now())
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
