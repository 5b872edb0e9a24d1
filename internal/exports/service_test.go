package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"leadtracker_backend/internal/adapters/storage"
	"leadtracker_backend/internal/leads/query"
	"leadtracker_backend/internal/leads/transport"
	"leadtracker_backend/internal/scheduler"
	"leadtracker_backend/platform/apperr"
	"leadtracker_backend/platform/logger"
	"leadtracker_backend/platform/validator"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	jobs []string
	err  error
}

func (q *fakeQueue) EnqueueLeadExport(_ context.Context, payload scheduler.LeadExportPayload) error {
	q.jobs = append(q.jobs, payload.JobID)
	return q.err
}

type fakeLeads struct {
	total  int
	err    error
	params []query.Params
}

func (l *fakeLeads) List(_ context.Context, params query.Params) ([]transport.LeadResponse, error) {
	l.params = append(l.params, params)
	if l.err != nil {
		return nil, l.err
	}
	start := (params.Page - 1) * params.PageSize
	var out []transport.LeadResponse
	for i := start; i < l.total && i < start+params.PageSize; i++ {
		out = append(out, transport.LeadResponse{ID: uuid.New(), Name: fmt.Sprintf("Lead %03d", i), CurrentStage: "New Lead"})
	}
	return out, nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (o *fakeObjects) EnsureBucketExists(context.Context, string) error { return nil }

func (o *fakeObjects) UploadFile(_ context.Context, bucket, key, _ string, r io.Reader, _ int64) error {
	if o.err != nil {
		return o.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.objects == nil {
		o.objects = make(map[string][]byte)
	}
	o.objects[bucket+"/"+key] = data
	return nil
}

func (o *fakeObjects) GenerateDownloadURL(_ context.Context, bucket, key, name string) (*storage.PresignedURL, error) {
	return &storage.PresignedURL{
		URL:       "https://files.example/" + bucket + "/" + key + "?name=" + name,
		FileKey:   key,
		ExpiresAt: time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC),
	}, nil
}

func (o *fakeObjects) DeleteObject(context.Context, string, string) error { return nil }

type fixture struct {
	svc     *Service
	store   *StatusStore
	queue   *fakeQueue
	leads   *fakeLeads
	objects *fakeObjects
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T, total, maxRows int) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewStatusStore(client, time.Hour)
	leads := &fakeLeads{total: total}
	objects := &fakeObjects{}
	queue := &fakeQueue{}

	svc := NewService(store, leads, objects, "lead-exports", maxRows, logger.Discard())
	svc.SetQueue(queue)
	return fixture{svc: svc, store: store, queue: queue, leads: leads, objects: objects, redis: mr}
}

func TestStatusStoreExpires(t *testing.T) {
	f := newFixture(t, 0, 10)
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, Job{ID: "abc", Status: StatusQueued, Format: FormatCSV}))
	got, err := f.store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)

	f.redis.FastForward(2 * time.Hour)
	_, err = f.store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRequestQueuesJob(t *testing.T) {
	f := newFixture(t, 0, 10)

	job, err := f.svc.Request(context.Background(), CreateExportRequest{Format: "CSV", Search: "ada"})
	require.NoError(t, err)

	assert.Equal(t, StatusQueued, job.Status)
	assert.Equal(t, FormatCSV, job.Format)
	assert.Equal(t, []string{job.ID}, f.queue.jobs)

	stored, err := f.store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", stored.Search)
}

func TestRequestEnqueueFailureMarksJobFailed(t *testing.T) {
	f := newFixture(t, 0, 10)
	f.queue.err = errors.New("redis down")

	_, err := f.svc.Request(context.Background(), CreateExportRequest{Format: "xlsx"})

	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.GetKind(err))
	require.Len(t, f.queue.jobs, 1)
	stored, err := f.store.Get(context.Background(), f.queue.jobs[0])
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestRequestWithoutQueueIsUnavailable(t *testing.T) {
	f := newFixture(t, 0, 10)
	f.svc.SetQueue(nil)

	_, err := f.svc.Request(context.Background(), CreateExportRequest{Format: "csv"})
	assert.Equal(t, apperr.KindUnavailable, apperr.GetKind(err))
}

func TestRunPagesThroughAllLeads(t *testing.T) {
	f := newFixture(t, 250, 1000)
	ctx := context.Background()
	desc := false

	job, err := f.svc.Request(ctx, CreateExportRequest{Format: "csv", SortBy: "name", SortDesc: &desc})
	require.NoError(t, err)
	require.NoError(t, f.svc.Run(ctx, job.ID))

	require.Len(t, f.leads.params, 3)
	assert.Equal(t, query.MaxPageSize, f.leads.params[0].PageSize)
	assert.Equal(t, "name", f.leads.params[2].SortBy)

	data := f.objects.objects["lead-exports/exports/"+job.ID+".csv"]
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 251)

	status, err := f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 250, status.Rows)
	assert.False(t, status.Truncated)
	assert.Contains(t, status.DownloadURL, "exports/"+job.ID+".csv")
	require.NotNil(t, status.ExpiresAt)
}

func TestRunTruncatesAtMaxRows(t *testing.T) {
	f := newFixture(t, 250, 120)
	ctx := context.Background()

	job, err := f.svc.Request(ctx, CreateExportRequest{Format: "xlsx"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Run(ctx, job.ID))

	status, err := f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 120, status.Rows)
	assert.True(t, status.Truncated)
	assert.Len(t, f.leads.params, 2)
}

func TestRunRecordsFailure(t *testing.T) {
	f := newFixture(t, 5, 100)
	f.objects.err = errors.New("bucket missing")
	ctx := context.Background()

	job, err := f.svc.Request(ctx, CreateExportRequest{Format: "csv"})
	require.NoError(t, err)
	require.Error(t, f.svc.Run(ctx, job.ID))

	status, err := f.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Equal(t, "bucket missing", status.Error)
	assert.Empty(t, status.DownloadURL)
}

func TestStatusUnknownJob(t *testing.T) {
	f := newFixture(t, 0, 10)

	_, err := f.svc.Status(context.Background(), uuid.NewString())
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
}

func newExportRouter(f fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(f.svc, validator.New()).RegisterRoutes(r.Group("/api/v1/leads/exports"))
	return r
}

func TestHandlerCreateReturnsAccepted(t *testing.T) {
	f := newFixture(t, 0, 10)
	r := newExportRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/exports", strings.NewReader(`{"format":"csv"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"queued"`)
}

func TestHandlerRejectsBadFormat(t *testing.T) {
	f := newFixture(t, 0, 10)
	r := newExportRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/exports", strings.NewReader(`{"format":"pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.jobs)
}

func TestHandlerGetUnknownJob(t *testing.T) {
	f := newFixture(t, 0, 10)
	r := newExportRouter(f)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads/exports/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leads/exports/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
