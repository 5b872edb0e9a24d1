package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadtracker_backend/internal/events"
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/query"
	"leadtracker_backend/internal/leads/repository"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/platform/apperr"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service owns every lead lifecycle operation. It holds no state between
// calls beyond its collaborators.
type Service struct {
	repo     repository.LeadRepository
	pipeline *domain.Pipeline
	events   events.Publisher
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(repo repository.LeadRepository, pipeline *domain.Pipeline, publisher events.Publisher, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		events:   publisher,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetMetrics enables operation counters.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Pipeline exposes the stage pipeline the service enforces.
func (s *Service) Pipeline() *domain.Pipeline {
	return s.pipeline
}

func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (resp transport.LeadResponse, err error) {
	const op = "leads.Create"
	defer func() { s.observe("create", err) }()

	email := domain.NormalizeEmail(req.Email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return transport.LeadResponse{}, duplicate(op, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, unavailable(op, fmt.Errorf("check email %s: %w", email, err))
	}

	lead, err := s.pipeline.NewLead(toNewLeadInput(req), s.now())
	if err != nil {
		return transport.LeadResponse{}, invalid(op, err)
	}

	created, err := s.repo.Create(ctx, lead)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return transport.LeadResponse{}, duplicate(op, email)
	}
	if err != nil {
		return transport.LeadResponse{}, unavailable(op, fmt.Errorf("insert lead: %w", err))
	}

	s.events.Publish(ctx, events.NewLeadCreated(created, created.CreatedAt))
	return ToLeadResponse(s.pipeline, created), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (resp transport.LeadResponse, err error) {
	const op = "leads.Get"
	defer func() { s.observe("get", err) }()

	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, s.storageError(op, id, "get", err)
	}
	return ToLeadResponse(s.pipeline, lead), nil
}

// GetByEmail reports whether a lead uses email. Absence is not an error.
func (s *Service) GetByEmail(ctx context.Context, email string) (transport.LeadResponse, bool, error) {
	const op = "leads.GetByEmail"

	lead, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return transport.LeadResponse{}, false, nil
	}
	if err != nil {
		return transport.LeadResponse{}, false, unavailable(op, fmt.Errorf("get lead by email: %w", err))
	}
	return ToLeadResponse(s.pipeline, lead), true, nil
}

// List returns one page of leads. An empty page is an empty slice.
func (s *Service) List(ctx context.Context, params query.Params) ([]transport.LeadResponse, error) {
	const op = "leads.List"

	spec, err := query.Build(params)
	if err != nil {
		return nil, err
	}
	leads, err := s.repo.List(ctx, spec)
	if err != nil {
		return nil, unavailable(op, fmt.Errorf("list leads: %w", err))
	}
	return toLeadResponses(s.pipeline, leads), nil
}

// Count returns how many leads match search.
func (s *Service) Count(ctx context.Context, search string) (int64, error) {
	const op = "leads.Count"

	total, err := s.repo.Count(ctx, query.NewFilter(search))
	if err != nil {
		return 0, unavailable(op, fmt.Errorf("count leads: %w", err))
	}
	return total, nil
}

// ListPage fetches a page and the total match count concurrently.
func (s *Service) ListPage(ctx context.Context, req transport.ListLeadsRequest) (resp transport.LeadListResponse, err error) {
	const op = "leads.ListPage"
	defer func() { s.observe("list", err) }()

	spec, err := query.Build(query.Params{
		Page:     req.Page,
		PageSize: req.PageSize,
		SortBy:   req.SortBy,
		SortDesc: req.SortDesc,
		Search:   req.Search,
	})
	if err != nil {
		return transport.LeadListResponse{}, err
	}

	var (
		leads []domain.Lead
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		leads, err = s.repo.List(gctx, spec)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, spec.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return transport.LeadListResponse{}, unavailable(op, fmt.Errorf("list leads: %w", err))
	}

	return transport.LeadListResponse{
		Items:      toLeadResponses(s.pipeline, leads),
		Total:      total,
		Page:       spec.Page(),
		PageSize:   spec.Limit,
		TotalPages: query.TotalPages(total, spec.Limit),
	}, nil
}

// Update applies the present fields of req in one atomic read-modify-write.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (resp transport.LeadResponse, err error) {
	const op = "leads.Update"
	defer func() { s.observe("update", err) }()

	patch := toPatch(req)
	now := s.now()
	direction := domain.DirectionNone

	updated, err := s.repo.UpdateAtomic(ctx, id, func(current domain.Lead) (domain.Lead, error) {
		next, dir, err := s.pipeline.ApplyPatch(current, patch, now)
		direction = dir
		return next, err
	})
	switch {
	case errors.Is(err, domain.ErrUnknownStage):
		return transport.LeadResponse{}, invalid(op, err)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return transport.LeadResponse{}, duplicate(op, requestedEmail(req))
	case err != nil:
		return transport.LeadResponse{}, s.storageError(op, id, "update", err)
	}

	if direction != domain.DirectionNone && s.metrics != nil {
		s.metrics.RecordStageTransition(string(direction))
	}
	s.events.Publish(ctx, events.NewLeadUpdated(updated, direction, now))
	return ToLeadResponse(s.pipeline, updated), nil
}

// Delete removes a lead permanently and returns its last state.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (resp transport.LeadResponse, err error) {
	const op = "leads.Delete"
	defer func() { s.observe("delete", err) }()

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, s.storageError(op, id, "delete", err)
	}

	s.events.Publish(ctx, events.NewLeadDeleted(deleted, s.now()))
	return ToLeadResponse(s.pipeline, deleted), nil
}

// Stages describes the pipeline with the progress of every stage.
func (s *Service) Stages() transport.StagesResponse {
	names := s.pipeline.Stages()
	out := make([]transport.StageResponse, 0, len(names))
	for i, name := range names {
		progress, _ := s.pipeline.ProgressPercentage(name)
		out = append(out, transport.StageResponse{
			Name:     name,
			Index:    i,
			Progress: progress,
			IsLost:   s.pipeline.IsLost(name),
		})
	}
	return transport.StagesResponse{Stages: out}
}

func (s *Service) storageError(op string, id uuid.UUID, action string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		nf := &NotFoundError{ID: id}
		return apperr.Wrap(apperr.KindNotFound, nf.Error(), nf).WithOp(op)
	}
	s.log.DatabaseError(op, err)
	return unavailable(op, fmt.Errorf("%s lead %s: %w", action, id, err))
}

func (s *Service) observe(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindNotFound):
		outcome = "not_found"
	case apperr.Is(err, apperr.KindConflict):
		outcome = "conflict"
	case apperr.Is(err, apperr.KindValidation):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.RecordLeadOperation(operation, outcome)
}

func requestedEmail(req transport.UpdateLeadRequest) string {
	if req.Email == nil {
		return ""
	}
	return domain.NormalizeEmail(*req.Email)
}

func duplicate(op, email string) error {
	dup := &DuplicateError{Email: email}
	return apperr.Wrap(apperr.KindConflict, dup.Error(), dup).WithOp(op)
}

func invalid(op string, err error) error {
	return apperr.Wrap(apperr.KindValidation, err.Error(), err).WithOp(op)
}

func unavailable(op string, err error) error {
	return apperr.Unavailable(ErrStorageUnavailable.Error(), fmt.Errorf("%w: %w", ErrStorageUnavailable, err)).WithOp(op)
}
