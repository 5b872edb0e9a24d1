package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/handler"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/validator"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreator struct {
	existing map[string]bool
	created  []transport.CreateLeadRequest
	err      error
}

func (f *fakeCreator) GetByEmail(_ context.Context, email string) (transport.LeadResponse, bool, error) {
	return transport.LeadResponse{}, f.existing[email], nil
}

func (f *fakeCreator) Create(_ context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	if f.err != nil {
		return transport.LeadResponse{}, f.err
	}
	f.created = append(f.created, req)
	return transport.LeadResponse{ID: uuid.New(), CurrentStage: req.CurrentStage}, nil
}

func TestGenerateProducesValidUniqueLeads(t *testing.T) {
	pipeline := domain.DefaultPipeline()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	val := validator.New()
	require.NoError(t, handler.RegisterValidations(val, pipeline))

	reqs := Generate(gofakeit.New(42), pipeline, 200, now)
	require.Len(t, reqs, 200)

	emails := make(map[string]struct{})
	for _, req := range reqs {
		assert.NoError(t, val.Struct(req), req.Email)
		_, dup := emails[req.Email]
		assert.False(t, dup, "duplicate email %s", req.Email)
		emails[req.Email] = struct{}{}
		if req.LastContacted != nil {
			assert.False(t, req.LastContacted.After(now))
		}
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	pipeline := domain.DefaultPipeline()
	now := time.Now()

	a := Generate(gofakeit.New(7), pipeline, 5, now)
	b := Generate(gofakeit.New(7), pipeline, 5, now)
	assert.Equal(t, a, b)
}

func TestRunSkipsExistingEmails(t *testing.T) {
	reqs := []transport.CreateLeadRequest{
		{Name: "A", Email: "a@example.com", Company: "A"},
		{Name: "B", Email: "b@example.com", Company: "B"},
	}
	creator := &fakeCreator{existing: map[string]bool{"a@example.com": true}}

	created, skipped, err := Run(context.Background(), creator, reqs, logger.Discard())

	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, "b@example.com", creator.created[0].Email)
}

func TestRunStopsOnError(t *testing.T) {
	creator := &fakeCreator{err: errors.New("storage down")}

	created, _, err := Run(context.Background(), creator, []transport.CreateLeadRequest{{Email: "x@example.com"}}, logger.Discard())

	assert.Error(t, err)
	assert.Equal(t, 0, created)
}
