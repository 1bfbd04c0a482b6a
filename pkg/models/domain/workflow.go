package domain

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusDone, JobStatusFailed:
		return true
	}
	return false
}

// Job tracks one background report generation for an uploaded file.
type Job struct {
	ID         string
	Filename   string
	SourcePath string
	HTMLPath   string
	JSONPath   string
	Status     JobStatus
	Error      *string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Upload is a saved CSV file waiting for its report.
type Upload struct {
	Filename   string
	SourcePath string
	HTMLPath   string
	JSONPath   string
	Size       int64
}
