package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadtracker_backend/internal/leads/domain"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/platform/apperr"
	"leadtracker_backend/platform/httpkit"
	"leadtracker_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	created  *transport.CreateLeadRequest
	updated  *transport.UpdateLeadRequest
	listed   *transport.ListLeadsRequest
	lead     transport.LeadResponse
	err      error
	pipeline *domain.Pipeline
}

func (s *stubService) Create(_ context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	s.created = &req
	return s.lead, s.err
}

func (s *stubService) GetByID(_ context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	if s.err != nil {
		return transport.LeadResponse{}, s.err
	}
	lead := s.lead
	lead.ID = id
	return lead, nil
}

func (s *stubService) ListPage(_ context.Context, req transport.ListLeadsRequest) (transport.LeadListResponse, error) {
	s.listed = &req
	return transport.LeadListResponse{Items: []transport.LeadResponse{s.lead}, Total: 1, Page: 1, PageSize: 10, TotalPages: 1}, s.err
}

func (s *stubService) Update(_ context.Context, _ uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	s.updated = &req
	return s.lead, s.err
}

func (s *stubService) Delete(_ context.Context, _ uuid.UUID) (transport.LeadResponse, error) {
	return s.lead, s.err
}

func (s *stubService) Stages() transport.StagesResponse {
	var out transport.StagesResponse
	for i, name := range s.pipeline.Stages() {
		out.Stages = append(out.Stages, transport.StageResponse{Name: name, Index: i, IsLost: s.pipeline.IsLost(name)})
	}
	return out
}

func newRouter(t *testing.T, svc *stubService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc.pipeline = domain.DefaultPipeline()
	val := validator.New()
	require.NoError(t, RegisterValidations(val, svc.pipeline))

	r := gin.New()
	New(svc, val).RegisterRoutes(r.Group("/api/v1/leads"))
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpkit.ErrorResponse {
	t.Helper()
	var resp httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func sampleLead() transport.LeadResponse {
	return transport.LeadResponse{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        "ada@example.com",
		Company:      "Analytical",
		Status:       domain.StatusNotEngaged,
		CurrentStage: domain.StageNewLead,
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateLead(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/v1/leads", `{"name":"Ada","email":"ada@example.com","company":"Analytical","current_stage":"Meeting Scheduled"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, domain.StageMeetingScheduled, svc.created.CurrentStage)

	var got transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Ada", got.Name)
}

func TestCreateLeadValidation(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/v1/leads", `{"name":"","email":"not-an-email","company":"X","current_stage":"Signed"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.created)

	resp := decodeError(t, rec)
	assert.Equal(t, msgValidationFailed, resp.Error)
	details, ok := resp.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "current_stage")
}

func TestCreateLeadMalformedBody(t *testing.T) {
	svc := &stubService{}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/v1/leads", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidRequest, decodeError(t, rec).Error)
}

func TestCreateLeadConflict(t *testing.T) {
	svc := &stubService{err: apperr.Conflict("Lead with email ada@example.com already exists")}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPost, "/api/v1/leads", `{"name":"Ada","email":"ada@example.com","company":"Analytical"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Lead with email ada@example.com already exists", decodeError(t, rec).Error)
}

func TestGetLead(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)
	id := uuid.New()

	rec := do(r, http.MethodGet, "/api/v1/leads/"+id.String(), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var got transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
}

func TestGetLeadInvalidID(t *testing.T) {
	r := newRouter(t, &stubService{})

	rec := do(r, http.MethodGet, "/api/v1/leads/not-a-uuid", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidLeadID, decodeError(t, rec).Error)
}

func TestGetLeadNotFound(t *testing.T) {
	id := uuid.New()
	svc := &stubService{err: apperr.NotFound("Lead with ID " + id.String() + " not found")}
	r := newRouter(t, svc)

	rec := do(r, http.MethodGet, "/api/v1/leads/"+id.String(), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Lead with ID "+id.String()+" not found", decodeError(t, rec).Error)
}

func TestUnexpectedErrorIsOpaque(t *testing.T) {
	svc := &stubService{err: context.DeadlineExceeded}
	r := newRouter(t, svc)

	rec := do(r, http.MethodGet, "/api/v1/leads/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec).Error)
}

func TestStorageUnavailableIs503(t *testing.T) {
	svc := &stubService{err: apperr.Unavailable("lead storage unavailable", context.DeadlineExceeded)}
	r := newRouter(t, svc)

	rec := do(r, http.MethodDelete, "/api/v1/leads/"+uuid.NewString(), "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPatchLeadPassesOnlyPresentFields(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPatch, "/api/v1/leads/"+uuid.NewString(), `{"current_stage":"Negotiation","last_contacted":null}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updated)
	assert.Nil(t, svc.updated.Name)
	assert.Nil(t, svc.updated.Engaged)
	require.NotNil(t, svc.updated.CurrentStage)
	assert.Equal(t, domain.StageNegotiation, *svc.updated.CurrentStage)
	assert.True(t, svc.updated.LastContacted.Set)
	assert.Nil(t, svc.updated.LastContacted.Value)
}

func TestPutLeadRejectsUnknownStage(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)

	rec := do(r, http.MethodPut, "/api/v1/leads/"+uuid.NewString(), `{"current_stage":"Signed"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.updated)
	assert.Equal(t, msgValidationFailed, decodeError(t, rec).Error)
}

func TestListLeadsBindsQuery(t *testing.T) {
	svc := &stubService{lead: sampleLead()}
	r := newRouter(t, svc)

	rec := do(r, http.MethodGet, "/api/v1/leads?page=2&page_size=5&sort_by=name&sort_desc=false&search=ada", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listed)
	assert.Equal(t, 2, svc.listed.Page)
	assert.Equal(t, 5, svc.listed.PageSize)
	assert.Equal(t, "name", svc.listed.SortBy)
	require.NotNil(t, svc.listed.SortDesc)
	assert.False(t, *svc.listed.SortDesc)
	assert.Equal(t, "ada", svc.listed.Search)

	var page transport.LeadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
}

func TestListLeadsRejectsBadSort(t *testing.T) {
	svc := &stubService{}
	r := newRouter(t, svc)

	rec := do(r, http.MethodGet, "/api/v1/leads?sort_by=email", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.listed)
}

func TestListLeadsRejectsOversizedPage(t *testing.T) {
	r := newRouter(t, &stubService{})

	rec := do(r, http.MethodGet, "/api/v1/leads?page_size=500", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStagesEndpoint(t *testing.T) {
	r := newRouter(t, &stubService{})

	rec := do(r, http.MethodGet, "/api/v1/leads/stages", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp transport.StagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Stages, 7)
	assert.Equal(t, domain.StageNewLead, resp.Stages[0].Name)
	assert.True(t, resp.Stages[6].IsLost)
}
