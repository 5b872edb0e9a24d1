package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/query"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const leadColumns = `id, name, email, company, status, engaged, current_stage,
	stage_updated_at, last_contacted, stage_history, created_at, updated_at`

// Repository stores leads in PostgreSQL.
type Repository struct {
	pool     *pgxpool.Pool
	pipeline *domain.Pipeline
}

// New binds the repository to a pool. The pipeline decides how current_stage sorts.
func New(pool *pgxpool.Pool, pipeline *domain.Pipeline) *Repository {
	return &Repository{pool: pool, pipeline: pipeline}
}

var _ LeadRepository = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	history, err := json.Marshal(lead.StageHistory)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode stage history: %w", err)
	}

	created, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (
			name, email, company, status, engaged, current_stage,
			stage_updated_at, last_contacted, stage_history, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+leadColumns,
		lead.Name, lead.Email, lead.Company, lead.Status, lead.Engaged, lead.CurrentStage,
		lead.StageUpdatedAt, lead.LastContacted, history, lead.CreatedAt, lead.UpdatedAt,
	))
	if isUniqueViolation(err) {
		return domain.Lead{}, ErrDuplicateEmail
	}
	return created, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) List(ctx context.Context, spec query.Spec) ([]domain.Lead, error) {
	sql, args := buildListQuery(spec, r.pipeline.Stages())

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0, spec.Limit)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return leads, nil
}

func (r *Repository) Count(ctx context.Context, filter query.Filter) (int64, error) {
	where, args := buildListWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM leads WHERE "+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// UpdateAtomic locks the row with SELECT ... FOR UPDATE, applies mutate to the
// locked state and writes the result in the same transaction. Any failure,
// including cancellation of ctx, rolls the whole unit back.
func (r *Repository) UpdateAtomic(ctx context.Context, id uuid.UUID, mutate MutateFunc) (domain.Lead, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Lead{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanLead(tx.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	next, err := mutate(current)
	if err != nil {
		return domain.Lead{}, err
	}

	history, err := json.Marshal(next.StageHistory)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode stage history: %w", err)
	}

	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			name = $2, email = $3, company = $4, status = $5, engaged = $6, current_stage = $7,
			stage_updated_at = $8, last_contacted = $9, stage_history = $10, updated_at = $11
		WHERE id = $1
		RETURNING `+leadColumns,
		id, next.Name, next.Email, next.Company, next.Status, next.Engaged, next.CurrentStage,
		next.StageUpdatedAt, next.LastContacted, history, next.UpdatedAt,
	))
	if isUniqueViolation(err) {
		return domain.Lead{}, ErrDuplicateEmail
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}
	return updated, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `DELETE FROM leads WHERE id = $1 RETURNING `+leadColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead    domain.Lead
		history []byte
	)
	if err := row.Scan(
		&lead.ID, &lead.Name, &lead.Email, &lead.Company, &lead.Status, &lead.Engaged, &lead.CurrentStage,
		&lead.StageUpdatedAt, &lead.LastContacted, &history, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return domain.Lead{}, err
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &lead.StageHistory); err != nil {
			return domain.Lead{}, fmt.Errorf("decode stage history of lead %s: %w", lead.ID, err)
		}
	}
	return lead, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func buildListWhere(filter query.Filter) (string, []interface{}) {
	if filter.IsEmpty() {
		return "TRUE", nil
	}
	return "(name ILIKE $1 OR email ILIKE $1 OR company ILIKE $1)", []interface{}{filter.LikePattern()}
}

func buildListQuery(spec query.Spec, stages []string) (string, []interface{}) {
	where, args := buildListWhere(spec.Filter)
	argIdx := len(args) + 1

	direction := "ASC"
	if spec.Sort.Desc {
		direction = "DESC"
	}

	var order string
	switch spec.Sort.Field {
	case query.SortName:
		order = "name " + direction
	case query.SortCompany:
		order = "company " + direction
	case query.SortLastContacted:
		order = "last_contacted " + direction + " NULLS LAST"
	case query.SortCurrentStage:
		order = fmt.Sprintf("array_position($%d::text[], current_stage) %s", argIdx, direction)
		args = append(args, stages)
		argIdx++
	default:
		order = "created_at " + direction
	}

	args = append(args, spec.Limit, spec.Skip)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(leadColumns)
	sb.WriteString(" FROM leads WHERE ")
	sb.WriteString(where)
	fmt.Fprintf(&sb, " ORDER BY %s, id ASC LIMIT $%d OFFSET $%d", order, argIdx, argIdx+1)
	return sb.String(), args
}
