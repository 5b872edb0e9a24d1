package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"leadtracker_backend/internal/adapters/storage"
	"leadtracker_backend/internal/leads/query"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/internal/scheduler"
	"leadtracker_backend/platform/apperr"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"

	"github.com/google/uuid"
)

// LeadSource pages through leads the way the list endpoint does.
type LeadSource interface {
	List(ctx context.Context, params query.Params) ([]transport.LeadResponse, error)
}

// Service queues export jobs, reports their status, and runs them on the worker.
type Service struct {
	store   *StatusStore
	queue   scheduler.ExportEnqueuer
	leads   LeadSource
	objects storage.StorageService
	bucket  string
	maxRows int
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store *StatusStore, leads LeadSource, objects storage.StorageService, bucket string, maxRows int, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		leads:   leads,
		objects: objects,
		bucket:  bucket,
		maxRows: maxRows,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue enables Request. The worker process leaves it unset.
func (s *Service) SetQueue(q scheduler.ExportEnqueuer) { s.queue = q }

// SetMetrics enables export counters.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// Request stores a queued job and hands it to the worker.
func (s *Service) Request(ctx context.Context, req CreateExportRequest) (JobResponse, error) {
	const op = "exports.Request"

	format, err := ParseFormat(req.Format)
	if err != nil {
		return JobResponse{}, apperr.Validation(err.Error()).WithOp(op)
	}
	if s.queue == nil {
		return JobResponse{}, apperr.Unavailable("lead export is not available", nil).WithOp(op)
	}
	if _, err := query.Build(query.Params{SortBy: req.SortBy, SortDesc: req.SortDesc, Search: req.Search}); err != nil {
		return JobResponse{}, err
	}

	now := s.now()
	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Format:    format,
		Search:    req.Search,
		SortBy:    req.SortBy,
		SortDesc:  req.SortDesc,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return JobResponse{}, apperr.Unavailable("export status store unavailable", err).WithOp(op)
	}

	if err := s.queue.EnqueueLeadExport(ctx, scheduler.LeadExportPayload{JobID: job.ID}); err != nil {
		s.fail(context.WithoutCancel(ctx), job, err)
		return JobResponse{}, apperr.Unavailable("export queue unavailable", err).WithOp(op)
	}

	if s.metrics != nil {
		s.metrics.RecordExport(string(format))
	}
	s.log.Info("lead export queued", "jobId", job.ID, "format", format)
	return toJobResponse(job), nil
}

// Status reports a job. Completed jobs carry a short-lived download URL.
func (s *Service) Status(ctx context.Context, id string) (JobResponse, error) {
	const op = "exports.Status"

	job, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrJobNotFound) {
		return JobResponse{}, apperr.NotFound(fmt.Sprintf("Export job %s not found", id)).WithOp(op)
	}
	if err != nil {
		return JobResponse{}, apperr.Unavailable("export status store unavailable", err).WithOp(op)
	}

	resp := toJobResponse(job)
	if job.Status == StatusCompleted && s.objects != nil {
		url, err := s.objects.GenerateDownloadURL(ctx, s.bucket, job.FileKey, job.FileName())
		if err != nil {
			return JobResponse{}, apperr.Unavailable("export storage unavailable", err).WithOp(op)
		}
		resp.DownloadURL = url.URL
		resp.ExpiresAt = &url.ExpiresAt
	}
	return resp, nil
}

// Run renders and uploads the job's file. Failures are recorded on the job
// and returned so the queue can retry.
func (s *Service) Run(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status == StatusCompleted {
		return nil
	}

	job.Status = StatusRunning
	job.Error = ""
	job.UpdatedAt = s.now()
	if err := s.store.Save(ctx, job); err != nil {
		return err
	}

	leads, truncated, err := s.collect(ctx, job)
	if err != nil {
		s.fail(ctx, job, err)
		return err
	}

	var buf bytes.Buffer
	if err := Render(&buf, job.Format, leads); err != nil {
		s.fail(ctx, job, err)
		return err
	}

	key := "exports/" + job.ID + job.Format.Extension()
	if err := s.objects.UploadFile(ctx, s.bucket, key, job.Format.ContentType(), &buf, int64(buf.Len())); err != nil {
		s.fail(ctx, job, err)
		return err
	}

	job.Status = StatusCompleted
	job.Rows = len(leads)
	job.Truncated = truncated
	job.FileKey = key
	job.UpdatedAt = s.now()
	return s.store.Save(ctx, job)
}

func (s *Service) collect(ctx context.Context, job Job) ([]transport.LeadResponse, bool, error) {
	var out []transport.LeadResponse
	for page := 1; ; page++ {
		batch, err := s.leads.List(ctx, query.Params{
			Page:     page,
			PageSize: query.MaxPageSize,
			SortBy:   job.SortBy,
			SortDesc: job.SortDesc,
			Search:   job.Search,
		})
		if err != nil {
			return nil, false, fmt.Errorf("list page %d: %w", page, err)
		}
		out = append(out, batch...)
		if len(out) > s.maxRows {
			return out[:s.maxRows], true, nil
		}
		if len(batch) < query.MaxPageSize {
			return out, false, nil
		}
	}
}

func (s *Service) fail(ctx context.Context, job Job, cause error) {
	job.Status = StatusFailed
	job.Error = cause.Error()
	job.UpdatedAt = s.now()
	if err := s.store.Save(ctx, job); err != nil {
		s.log.Error("failed to record export failure", "jobId", job.ID, "error", err)
	}
}
