package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/de-tools/data-profiler/pkg/models/store"
	"github.com/de-tools/data-profiler/pkg/store/duckdb"
)

var ErrJobNotFound = errors.New("job not found")

type Store interface {
	CreateJob(ctx context.Context, job *store.Job) error
	GetJob(ctx context.Context, id store.JobIdentity) (*store.Job, error)
	ListJobs(ctx context.Context, statuses []string) ([]*store.Job, error)
	MarkRunning(ctx context.Context, id store.JobIdentity, at time.Time) error
	MarkDone(ctx context.Context, id store.JobIdentity, at time.Time) error
	MarkFailed(ctx context.Context, id store.JobIdentity, at time.Time, reason string) error
	// FailUnfinished marks every queued or running job as failed and returns
	// how many rows changed.
	FailUnfinished(ctx context.Context, at time.Time, reason string) (int64, error)
	// InTransaction runs fn with a context whose store calls share one
	// transaction. It commits when fn returns nil and rolls back otherwise.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type defaultStore struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &defaultStore{
		db: db,
	}, nil
}

const jobColumns = `id, filename, source_path, html_path, json_path, status, error, created_at, started_at, finished_at`

func (s *defaultStore) CreateJob(ctx context.Context, job *store.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := duckdb.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO report_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Filename,
		job.SourcePath,
		job.HTMLPath,
		job.JSONPath,
		job.Status,
		nullString(job.Error),
		job.CreatedAt,
		nullTime(job.StartedAt),
		nullTime(job.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *defaultStore) GetJob(ctx context.Context, id store.JobIdentity) (*store.Job, error) {
	row := duckdb.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = ?`, id.ID)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id.ID)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *defaultStore) ListJobs(ctx context.Context, statuses []string) ([]*store.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM report_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, st := range statuses {
			placeholders = append(placeholders, "?")
			args = append(args, st)
		}
		query += fmt.Sprintf(" WHERE status IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := duckdb.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*store.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

func (s *defaultStore) MarkRunning(ctx context.Context, id store.JobIdentity, at time.Time) error {
	return s.update(ctx, id,
		`UPDATE report_jobs SET status = 'running', started_at = ? WHERE id = ? AND status = 'queued'`,
		at, id.ID)
}

func (s *defaultStore) MarkDone(ctx context.Context, id store.JobIdentity, at time.Time) error {
	return s.update(ctx, id,
		`UPDATE report_jobs SET status = 'done', error = NULL, finished_at = ? WHERE id = ? AND status = 'running'`,
		at, id.ID)
}

func (s *defaultStore) MarkFailed(ctx context.Context, id store.JobIdentity, at time.Time, reason string) error {
	return s.update(ctx, id,
		`UPDATE report_jobs SET status = 'failed', error = ?, finished_at = ? WHERE id = ? AND status IN ('queued', 'running')`,
		reason, at, id.ID)
}

func (s *defaultStore) FailUnfinished(ctx context.Context, at time.Time, reason string) (int64, error) {
	res, err := duckdb.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE report_jobs SET status = 'failed', error = ?, finished_at = ? WHERE status IN ('queued', 'running')`,
		reason, at)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *defaultStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if duckdb.GetTransaction(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(duckdb.WithTransaction(ctx, tx)); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// update runs a guarded status transition. Zero affected rows means the job
// is unknown or not in the expected source state.
func (s *defaultStore) update(ctx context.Context, id store.JobIdentity, query string, args ...any) error {
	res, err := duckdb.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s (or invalid transition)", ErrJobNotFound, id.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*store.Job, error) {
	var (
		job        store.Job
		errMsg     sql.NullString
		startedAt  sql.NullTime
		finishedAt sql.NullTime
	)
	if err := row.Scan(
		&job.ID,
		&job.Filename,
		&job.SourcePath,
		&job.HTMLPath,
		&job.JSONPath,
		&job.Status,
		&errMsg,
		&job.CreatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		msg := errMsg.String
		job.Error = &msg
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
