package model

import (
	"errors"
	"time"
)

// JobStatus is the lifecycle state of a download job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can happen from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobRecord is the persisted history row of a finished job.
type JobRecord struct {
	ID              string     `json:"id"`
	Identity        string     `json:"-"`
	SourceURL       string     `json:"url"`
	Platform        string     `json:"platform"`
	Title           string     `json:"title,omitempty"`
	Duration        float64    `json:"duration,omitempty"`
	FileSize        int64      `json:"file_size,omitempty"`
	RequestedFormat string     `json:"format,omitempty"`
	Status          JobStatus  `json:"status"`
	DurableURL      string     `json:"download_url,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ErrorCode       string     `json:"error_code,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Validate checks the result-field invariants: a completed record carries a
// durable URL and an expiry after its creation time, a failed one carries neither.
func (r *JobRecord) Validate() error {
	if r.ID == "" || r.Identity == "" {
		return errors.New("job record: id and identity are required")
	}
	switch r.Status {
	case JobCompleted:
		if r.DurableURL == "" {
			return errors.New("job record: completed without durable url")
		}
		if r.ExpiresAt == nil || !r.ExpiresAt.After(r.CreatedAt) {
			return errors.New("job record: expires_at must be after created_at")
		}
	case JobFailed:
		if r.DurableURL != "" || r.ExpiresAt != nil {
			return errors.New("job record: failed job must not carry a durable artifact")
		}
	default:
		return errors.New("job record: status must be terminal")
	}
	return nil
}

// JobResult is what a successful orchestration produces.
type JobResult struct {
	ID         string    `json:"download_id"`
	Title      string    `json:"title"`
	Duration   float64   `json:"duration"`
	Thumbnail  string    `json:"thumbnail,omitempty"`
	FileSize   int64     `json:"file_size"`
	DurableURL string    `json:"download_url"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"-"`
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// DownloadResponse mirrors the client-facing download result.
type DownloadResponse struct {
	*JobResult
	Usage   UsageSummary `json:"usage"`
	Warning *Warning     `json:"warning,omitempty"`
}

// Warning flags a non-fatal problem that happened after the job succeeded.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Downloads []JobRecord `json:"downloads"`
	Count     int         `json:"count"`
}
