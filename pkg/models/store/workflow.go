package store

import "time"

type Job struct {
	ID         string
	Filename   string
	SourcePath string
	HTMLPath   string
	JSONPath   string
	Status     string
	Error      *string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

type JobIdentity struct {
	ID string
}
