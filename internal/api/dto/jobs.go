package dto

import "time"

// JobStatusResponse exposes per-job scheduler introspection
type JobStatusResponse struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	Running    bool       `json:"running"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
}

// JobListResponse lists all registered jobs
type JobListResponse struct {
	Jobs []JobStatusResponse `json:"jobs"`
}
