package adapters

import (
	"path/filepath"

	"github.com/de-tools/data-profiler/pkg/models/api"
	"github.com/de-tools/data-profiler/pkg/models/domain"
	"github.com/de-tools/data-profiler/pkg/models/store"
)

func MapStoreJobToDomain(j *store.Job) *domain.Job {
	if j == nil {
		return nil
	}

	return &domain.Job{
		ID:         j.ID,
		Filename:   j.Filename,
		SourcePath: j.SourcePath,
		HTMLPath:   j.HTMLPath,
		JSONPath:   j.JSONPath,
		Status:     domain.JobStatus(j.Status),
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func MapDomainJobToStore(j *domain.Job) *store.Job {
	return &store.Job{
		ID:         j.ID,
		Filename:   j.Filename,
		SourcePath: j.SourcePath,
		HTMLPath:   j.HTMLPath,
		JSONPath:   j.JSONPath,
		Status:     string(j.Status),
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// MapJobDomainToApi exposes report file names only, never server paths.
func MapJobDomainToApi(j *domain.Job) api.Job {
	res := api.Job{
		ID:         j.ID,
		Filename:   j.Filename,
		Status:     string(j.Status),
		HTMLReport: filepath.Base(j.HTMLPath),
		JSONReport: filepath.Base(j.JSONPath),
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	if j.Error != nil {
		res.Error = *j.Error
	}
	return res
}

func MapJobsDomainToApi(jobs []*domain.Job) []api.Job {
	res := make([]api.Job, 0, len(jobs))
	for _, j := range jobs {
		res = append(res, MapJobDomainToApi(j))
	}
	return res
}
