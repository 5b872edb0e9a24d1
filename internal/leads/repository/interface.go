package repository

import (
	"context"
	"errors"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/query"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no lead has the requested id or email.
	ErrNotFound = errors.New("lead not found")
	// ErrDuplicateEmail is returned when a write would give two leads the same email.
	ErrDuplicateEmail = errors.New("lead email already exists")
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetByEmail(ctx context.Context, email string) (domain.Lead, error)
	List(ctx context.Context, spec query.Spec) ([]domain.Lead, error)
	Count(ctx context.Context, filter query.Filter) (int64, error)
}

// MutateFunc computes the next state of a lead from the locked current state.
// Returning an error aborts the update without writing anything.
type MutateFunc func(current domain.Lead) (domain.Lead, error)

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	// Create inserts lead and returns it with its storage assigned id.
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	// UpdateAtomic reads, mutates and writes one lead as a single unit.
	// Concurrent calls for the same id are applied one after another.
	UpdateAtomic(ctx context.Context, id uuid.UUID, mutate MutateFunc) (domain.Lead, error)
	// Delete removes the lead and returns its last state.
	Delete(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// LeadRepository is the full storage contract of the leads module.
type LeadRepository interface {
	LeadReader
	LeadWriter
}
