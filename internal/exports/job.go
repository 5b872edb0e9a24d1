// Package exports produces downloadable CSV and XLSX snapshots of the lead
// list. Jobs are queued, rendered by the worker, stored in object storage,
// and tracked in Redis until they expire.
package exports

import (
	"fmt"
	"strings"
	"time"

	"leadtracker_backend/internal/adapters/storage"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return storage.ContentTypeXLSX
	}
	return storage.ContentTypeCSV
}

func (f Format) Extension() string {
	return "." + string(f)
}

// JobStatus is where a job is in its lifecycle.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is the persisted state of one export request.
type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Format    Format    `json:"format"`
	Search    string    `json:"search,omitempty"`
	SortBy    string    `json:"sort_by,omitempty"`
	SortDesc  *bool     `json:"sort_desc,omitempty"`
	Rows      int       `json:"rows"`
	Truncated bool      `json:"truncated"`
	FileKey   string    `json:"file_key,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileName is the name offered to the browser on download.
func (j Job) FileName() string {
	return "leads-" + j.CreatedAt.UTC().Format("20060102-150405") + j.Format.Extension()
}

// CreateExportRequest is the body of POST /leads/exports.
type CreateExportRequest struct {
	Format   string `json:"format" validate:"required,oneof=csv xlsx CSV XLSX"`
	Search   string `json:"search" validate:"max=100"`
	SortBy   string `json:"sort_by" validate:"omitempty,oneof=name company current_stage last_contacted created_at"`
	SortDesc *bool  `json:"sort_desc"`
}

// JobResponse is what clients see of a job.
type JobResponse struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Format      Format     `json:"format"`
	Rows        int        `json:"rows"`
	Truncated   bool       `json:"truncated"`
	Error       string     `json:"error,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toJobResponse(job Job) JobResponse {
	return JobResponse{
		ID:        job.ID,
		Status:    job.Status,
		Format:    job.Format,
		Rows:      job.Rows,
		Truncated: job.Truncated,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
