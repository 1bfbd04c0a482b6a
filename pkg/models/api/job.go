package api

import "time"

type Job struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	Status     string     `json:"status"`
	HTMLReport string     `json:"html_report"`
	JSONReport string     `json:"json_report"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type UploadResult struct {
	JobID      string `json:"job_id"`
	Filename   string `json:"filename"`
	HTMLReport string `json:"html_report"`
	JSONReport string `json:"json_report"`
	HTMLURL    string `json:"html_url"`
	JSONURL    string `json:"json_url"`
	StatusURL  string `json:"status_url"`
	SizeBytes  int64  `json:"size_bytes"`
}
