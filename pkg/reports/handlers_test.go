package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adpulse-ai/platform/pkg/adsapi"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func (f *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.held[key] {
		return nil, jobs.ErrLocked
	}
	return func() { f.released = append(f.released, key) }, nil
}

func processJob(id uint) jobs.Job {
	return jobs.New(jobs.KindReportProcess, processKey(id), map[string]interface{}{"request_id": float64(id)})
}

func TestProcessDefersWhenLocked(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{report: &adsapi.Report{Status: adsapi.RemotePending}}
	req := store.put(ReportRequest{ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})
	locker := &fakeLocker{held: map[string]bool{processKey(req.ID): true}}
	h := NewHandlers(newTestManager(store, source, &fakeIngester{}, &fakeQueue{}), locker, 0)

	err := h.Process(context.Background(), processJob(req.ID))
	assert.ErrorIs(t, err, jobs.ErrRetryLater)
	assert.Zero(t, source.statusCalls)
}

func TestProcessAdvancesAndReleases(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{report: &adsapi.Report{Status: adsapi.RemotePending}}
	req := store.put(ReportRequest{ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})
	locker := &fakeLocker{}
	h := NewHandlers(newTestManager(store, source, &fakeIngester{}, &fakeQueue{}), locker, 0)

	require.NoError(t, h.Process(context.Background(), processJob(req.ID)))
	assert.Equal(t, StatusProcessing, store.row(req.ID).Status)
	assert.Equal(t, []string{processKey(req.ID)}, locker.released)
}

func TestProcessRemoteFailureIsNotRetried(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{report: &adsapi.Report{Status: adsapi.RemoteFailed}}
	req := store.put(ReportRequest{ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusProcessing})
	h := NewHandlers(newTestManager(store, source, &fakeIngester{}, &fakeQueue{}), &fakeLocker{}, 0)

	assert.NoError(t, h.Process(context.Background(), processJob(req.ID)))
	assert.Equal(t, StatusFailed, store.row(req.ID).Status)
}

func TestGenerateJobSurvivesTransport(t *testing.T) {
	job := GenerateJob(models.GenerateRequest{
		CompanyID:   9,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-31",
		ReportTypes: []models.ReportType{models.ReportTypeKeyword, models.ReportTypeBudget},
	})

	raw, err := json.Marshal(job)
	require.NoError(t, err)
	var decoded jobs.Job
	require.NoError(t, json.Unmarshal(raw, &decoded))

	req, err := generateRequestFromJob(decoded)
	require.NoError(t, err)
	assert.Equal(t, uint(9), req.CompanyID)
	assert.Equal(t, "2024-01-31", req.EndDate)
	assert.Equal(t, []models.ReportType{models.ReportTypeKeyword, models.ReportTypeBudget}, req.ReportTypes)
}

func TestGenerateHandlerRequestsTypes(t *testing.T) {
	store := newMemStore()
	h := NewHandlers(newTestManager(store, &fakeSource{}, &fakeIngester{}, &fakeQueue{}), &fakeLocker{}, 0)

	job := GenerateJob(models.GenerateRequest{
		CompanyID:   3,
		StartDate:   "2024-01-01",
		EndDate:     "2024-01-07",
		ReportTypes: []models.ReportType{models.ReportTypeCampaign, models.ReportTypeSearchTerm},
	})
	require.NoError(t, h.Generate(context.Background(), job))
	assert.Len(t, store.rows, 2)
}

func TestValidatorNormalisesTypes(t *testing.T) {
	v := NewValidator(60)

	req := models.GenerateRequest{CompanyID: 1, StartDate: "2024-01-01", EndDate: "2024-01-31",
		ReportTypes: []models.ReportType{" keyword", "keyword", "budget"}}
	require.NoError(t, v.Validate(&req))
	assert.Equal(t, []models.ReportType{models.ReportTypeKeyword, models.ReportTypeBudget}, req.ReportTypes)

	all := models.GenerateRequest{CompanyID: 1, StartDate: "2024-01-01", EndDate: "2024-01-01"}
	require.NoError(t, v.Validate(&all))
	assert.Equal(t, models.AllReportTypes, all.ReportTypes)
}

func TestValidatorRejects(t *testing.T) {
	v := NewValidator(60)
	cases := []models.GenerateRequest{
		{StartDate: "2024-01-01", EndDate: "2024-01-31"},
		{CompanyID: 1, StartDate: "01/01/2024", EndDate: "2024-01-31"},
		{CompanyID: 1, StartDate: "2024-02-01", EndDate: "2024-01-31"},
		{CompanyID: 1, StartDate: "2024-01-01", EndDate: "2024-06-30"},
		{CompanyID: 1, StartDate: "2024-01-01", EndDate: "2024-01-31", ReportTypes: []models.ReportType{"display"}},
	}
	for _, req := range cases {
		err := v.Validate(&req)
		assert.True(t, IsValidationError(err), "%+v", req)
	}
}

func newTestRouter(store *memStore, queue *fakeQueue) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(NewValidator(60), queue, store, 1<<20).Register(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func TestHTTPGenerateEnqueuesJob(t *testing.T) {
	queue := &fakeQueue{}
	router := newTestRouter(newMemStore(), queue)

	body := `{"company_id":4,"start_date":"2024-01-01","end_date":"2024-01-31","report_types":["campaign"]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reports/generate", strings.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp models.GenerateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, queue.jobs[0].job.ID, resp.JobID)
	assert.Equal(t, jobs.KindReportGenerate, queue.jobs[0].job.Kind)
	assert.Equal(t, "accepted", resp.Status)
}

func TestHTTPGenerateRejectsInvalid(t *testing.T) {
	queue := &fakeQueue{}
	router := newTestRouter(newMemStore(), queue)

	for _, body := range []string{`{`, `{"company_id":0,"start_date":"2024-01-01","end_date":"2024-01-31"}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reports/generate", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, queue.jobs)
}

func TestHTTPRequestStatus(t *testing.T) {
	store := newMemStore()
	req := store.put(ReportRequest{CompanyID: 2, ReportID: "R-9", ReportType: models.ReportTypeBudget, Status: StatusProcessing})
	router := newTestRouter(store, &fakeQueue{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/requests/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got ReportRequest
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, StatusProcessing, got.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/requests/99", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/requests/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
