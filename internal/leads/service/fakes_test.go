package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"leadtracker_backend/internal/events"
	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/query"
	"leadtracker_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// memoryRepo is a LeadRepository kept in a map. UpdateAtomic holds the lock
// across read, mutate and write like a row lock would.
type memoryRepo struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.Lead

	failWith      error
	skipEmailScan bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{leads: make(map[uuid.UUID]domain.Lead)}
}

func (r *memoryRepo) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.failWith
}

func (r *memoryRepo) emailTaken(email string, except uuid.UUID) bool {
	for id, lead := range r.leads {
		if id != except && lead.Email == email {
			return true
		}
	}
	return false
}

func (r *memoryRepo) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return domain.Lead{}, err
	}
	if r.emailTaken(lead.Email, uuid.Nil) {
		return domain.Lead{}, repository.ErrDuplicateEmail
	}
	lead.ID = uuid.New()
	r.leads[lead.ID] = lead
	return lead, nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (r *memoryRepo) GetByEmail(ctx context.Context, email string) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return domain.Lead{}, err
	}
	if r.skipEmailScan {
		return domain.Lead{}, repository.ErrNotFound
	}
	for _, lead := range r.leads {
		if lead.Email == email {
			return lead, nil
		}
	}
	return domain.Lead{}, repository.ErrNotFound
}

func (r *memoryRepo) matching(filter query.Filter) []domain.Lead {
	needle := strings.ToLower(filter.Search)
	out := make([]domain.Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if needle == "" ||
			strings.Contains(strings.ToLower(lead.Name), needle) ||
			strings.Contains(strings.ToLower(lead.Email), needle) ||
			strings.Contains(strings.ToLower(lead.Company), needle) {
			out = append(out, lead)
		}
	}
	return out
}

func (r *memoryRepo) List(ctx context.Context, spec query.Spec) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	leads := r.matching(spec.Filter)
	sort.Slice(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if spec.Sort.Field == query.SortName {
			if spec.Sort.Desc {
				return a.Name > b.Name
			}
			return a.Name < b.Name
		}
		if spec.Sort.Desc {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if spec.Skip >= len(leads) {
		return []domain.Lead{}, nil
	}
	end := spec.Skip + spec.Limit
	if end > len(leads) {
		end = len(leads)
	}
	return leads[spec.Skip:end], nil
}

func (r *memoryRepo) Count(ctx context.Context, filter query.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return 0, err
	}
	return int64(len(r.matching(filter))), nil
}

func (r *memoryRepo) UpdateAtomic(ctx context.Context, id uuid.UUID, mutate repository.MutateFunc) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return domain.Lead{}, err
	}
	current, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	next, err := mutate(current)
	if err != nil {
		return domain.Lead{}, err
	}
	if r.emailTaken(next.Email, id) {
		return domain.Lead{}, repository.ErrDuplicateEmail
	}
	if err := ctx.Err(); err != nil {
		return domain.Lead{}, err
	}
	r.leads[id] = next
	return next, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return domain.Lead{}, err
	}
	lead, ok := r.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	delete(r.leads, id)
	return lead, nil
}

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) changeTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		if change, ok := e.(events.LeadChange); ok {
			out = append(out, change.ChangeType())
		}
	}
	return out
}

// steppingClock advances one minute on every call.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}
