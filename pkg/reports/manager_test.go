package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/adpulse-ai/platform/pkg/adsapi"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/adpulse-ai/platform/pkg/statistics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// memStore is an in-memory Store with the same identity and transition rules
// as Repository.
type memStore struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*ReportRequest
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uint]*ReportRequest)}
}

func (m *memStore) FirstOrCreate(_ context.Context, req *ReportRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.CompanyID == req.CompanyID && row.ReportID == req.ReportID && row.ReportType == req.ReportType &&
			row.StartDate.Equal(req.StartDate) && row.EndDate.Equal(req.EndDate) {
			*req = *row
			return nil
		}
	}
	m.nextID++
	req.ID = m.nextID
	stored := *req
	m.rows[req.ID] = &stored
	return nil
}

func (m *memStore) Get(_ context.Context, id uint) (*ReportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *row
	return &out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, req *ReportRequest, to Status, changes map[string]interface{}) error {
	if err := ValidateTransition(req.Status, to); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[req.ID]
	if !ok || row.Status != req.Status {
		return ErrStaleStatus
	}
	row.Status = to
	for k, v := range changes {
		switch k {
		case "last_attempt_at":
			t := v.(time.Time)
			row.LastAttemptAt = &t
		case "processed_at":
			t := v.(time.Time)
			row.ProcessedAt = &t
		case "last_error":
			row.LastError = v.(string)
		case "metadata":
			row.Metadata = v.(datatypes.JSONMap)
		}
	}
	req.Status = to
	return nil
}

func (m *memStore) Eligible(_ context.Context, policy Policy, now time.Time, limit int) ([]ReportRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ReportRequest
	for _, row := range m.rows {
		if policy.Eligible(*row, now) {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkDispatched(_ context.Context, req *ReportRequest, now time.Time, ceiling int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[req.ID]
	if !ok {
		return ErrNotFound
	}
	row.Attempts++
	row.LastAttemptAt = &now
	if row.Attempts >= ceiling {
		row.Status = StatusFailed
	}
	req.Attempts = row.Attempts
	req.LastAttemptAt = row.LastAttemptAt
	req.Status = row.Status
	return nil
}

func (m *memStore) put(req ReportRequest) *ReportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	req.ID = m.nextID
	m.rows[req.ID] = &req
	return &req
}

func (m *memStore) row(id uint) ReportRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

type fakeSource struct {
	mu          sync.Mutex
	requestErr  map[models.ReportType]error
	reportIDs   map[models.ReportType]string
	report      *adsapi.Report
	statusErr   error
	statusCalls int
}

func (f *fakeSource) RequestReport(_ context.Context, _ uint, _ models.DateRange, rt models.ReportType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.requestErr[rt]; err != nil {
		return "", err
	}
	if id, ok := f.reportIDs[rt]; ok {
		return id, nil
	}
	return "R-" + string(rt), nil
}

func (f *fakeSource) ReportStatus(_ context.Context, _ uint, _ string) (*adsapi.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.report, nil
}

type fakeIngester struct {
	calls int
	err   error
	rows  []models.Row
}

func (f *fakeIngester) Ingest(_ context.Context, _ uint, _ string, _ models.ReportMetadata, rows []models.Row) (statistics.IngestResult, error) {
	f.calls++
	f.rows = rows
	if f.err != nil {
		return statistics.IngestResult{}, f.err
	}
	return statistics.IngestResult{Rows: len(rows), Flushes: 1}, nil
}

type enqueued struct {
	job   jobs.Job
	delay time.Duration
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []enqueued
	failOn map[uint]bool
}

func (f *fakeQueue) Enqueue(_ context.Context, job jobs.Job, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id, err := job.Uint("request_id"); err == nil && f.failOn[id] {
		return errors.New("broker unavailable")
	}
	f.jobs = append(f.jobs, enqueued{job: job, delay: delay})
	return nil
}

func januaryRange(t *testing.T) models.DateRange {
	r, err := models.NewDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	return r
}

func newTestManager(store *memStore, source *fakeSource, ingester *fakeIngester, queue *fakeQueue) *Manager {
	return NewManager(store, source, ingester, queue, ManagerOptions{})
}

func TestRequestGenerationRecoversDuplicate(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{requestErr: map[models.ReportType]error{
		models.ReportTypeCampaign: fmt.Errorf("creating report: %w", &adsapi.DuplicateReportError{ReportID: "R123"}),
	}}
	m := newTestManager(store, source, &fakeIngester{}, &fakeQueue{})

	req, err := m.RequestGeneration(context.Background(), 7, januaryRange(t), models.ReportTypeCampaign)
	require.NoError(t, err)

	assert.Equal(t, "R123", req.ReportID)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 0, req.Attempts)
	assert.Equal(t, uint(7), req.CompanyID)
	assert.Len(t, store.rows, 1)
}

func TestRequestGenerationIsIdempotent(t *testing.T) {
	store := newMemStore()
	m := newTestManager(store, &fakeSource{}, &fakeIngester{}, &fakeQueue{})

	first, err := m.RequestGeneration(context.Background(), 1, januaryRange(t), models.ReportTypeKeyword)
	require.NoError(t, err)
	second, err := m.RequestGeneration(context.Background(), 1, januaryRange(t), models.ReportTypeKeyword)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.rows, 1)
}

func TestRequestGenerationErrorPersistsNothing(t *testing.T) {
	store := newMemStore()
	boom := errors.New("platform down")
	source := &fakeSource{requestErr: map[models.ReportType]error{models.ReportTypeCampaign: boom}}
	m := newTestManager(store, source, &fakeIngester{}, &fakeQueue{})

	_, err := m.RequestGeneration(context.Background(), 1, januaryRange(t), models.ReportTypeCampaign)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.rows)
}

func TestRequestGenerationsCollectsFailures(t *testing.T) {
	store := newMemStore()
	boom := errors.New("throttled")
	source := &fakeSource{requestErr: map[models.ReportType]error{models.ReportTypeKeyword: boom}}
	m := newTestManager(store, source, &fakeIngester{}, &fakeQueue{})

	types := []models.ReportType{models.ReportTypeCampaign, models.ReportTypeKeyword, models.ReportTypeBudget}
	created, err := m.RequestGenerations(context.Background(), 1, januaryRange(t), types)

	require.Error(t, err)
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	require.Len(t, genErr.Failures, 1)
	assert.Equal(t, models.ReportTypeKeyword, genErr.Failures[0].ReportType)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "keyword")

	require.Len(t, created, 2)
	assert.Equal(t, models.ReportTypeCampaign, created[0].ReportType)
	assert.Equal(t, models.ReportTypeBudget, created[1].ReportType)
	assert.Len(t, store.rows, 2)
}

func TestRequestGenerationsAllSucceed(t *testing.T) {
	m := newTestManager(newMemStore(), &fakeSource{}, &fakeIngester{}, &fakeQueue{})

	created, err := m.RequestGenerations(context.Background(), 1, januaryRange(t), models.AllReportTypes)
	require.NoError(t, err)
	assert.Len(t, created, len(models.AllReportTypes))
}

func TestAdvanceRemotePendingSchedulesPoll(t *testing.T) {
	store := newMemStore()
	queue := &fakeQueue{}
	source := &fakeSource{report: &adsapi.Report{ReportID: "R-1", Status: adsapi.RemotePending}}
	m := newTestManager(store, source, &fakeIngester{}, queue)
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})

	require.NoError(t, m.Advance(context.Background(), req.ID))

	assert.Equal(t, StatusProcessing, store.row(req.ID).Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobs.KindReportProcess, queue.jobs[0].job.Kind)
	assert.Equal(t, DefaultPollDelay, queue.jobs[0].delay)
	id, err := queue.jobs[0].job.Uint("request_id")
	require.NoError(t, err)
	assert.Equal(t, req.ID, id)

	assert.Equal(t, 1, store.row(req.ID).Attempts)
	assert.NotNil(t, store.row(req.ID).LastAttemptAt)

	source.report = &adsapi.Report{ReportID: "R-1", Status: adsapi.RemoteProcessing}
	require.NoError(t, m.Advance(context.Background(), req.ID))
	assert.Equal(t, StatusProcessing, store.row(req.ID).Status)
	assert.Equal(t, 2, store.row(req.ID).Attempts)
	assert.Len(t, queue.jobs, 2)
}

func TestAdvanceStillGeneratingStopsAtCeiling(t *testing.T) {
	store := newMemStore()
	queue := &fakeQueue{}
	source := &fakeSource{report: &adsapi.Report{ReportID: "R-1", Status: adsapi.RemotePending}}
	m := NewManager(store, source, &fakeIngester{}, queue, ManagerOptions{Ceiling: 3})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Advance(context.Background(), req.ID))
	}

	got := store.row(req.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 3, got.Attempts)
	assert.Contains(t, got.LastError, "still generating")
	assert.Len(t, queue.jobs, 2)
	assert.False(t, Policy{Ceiling: 3, Cooldown: time.Hour}.Eligible(got, time.Now().Add(48*time.Hour)))
}

func TestAdvanceCompletedIngests(t *testing.T) {
	store := newMemStore()
	ingester := &fakeIngester{}
	rows := []models.Row{{"campaignId": "123", "cost": "1.5"}}
	source := &fakeSource{report: &adsapi.Report{
		ReportID: "R-1",
		Status:   adsapi.RemoteCompleted,
		Metadata: models.ReportMetadata{ReportTypeID: "spCampaigns", AdProduct: "SPONSORED_PRODUCTS"},
		Rows:     rows,
	}}
	m := newTestManager(store, source, ingester, &fakeQueue{})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusProcessing})

	require.NoError(t, m.Advance(context.Background(), req.ID))

	got := store.row(req.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotNil(t, got.ProcessedAt)
	assert.NotNil(t, got.LastAttemptAt)
	assert.Equal(t, "spCampaigns", got.Metadata["report_type_id"])
	assert.Equal(t, 1, ingester.calls)
	assert.Equal(t, rows, ingester.rows)

	require.NoError(t, m.Advance(context.Background(), req.ID))
	assert.Equal(t, 1, ingester.calls)
	assert.Equal(t, 1, source.statusCalls)
}

func TestAdvanceIngestFailureMarksFailed(t *testing.T) {
	store := newMemStore()
	boom := errors.New("deadlock detected")
	source := &fakeSource{report: &adsapi.Report{ReportID: "R-1", Status: adsapi.RemoteCompleted}}
	m := newTestManager(store, source, &fakeIngester{err: boom}, &fakeQueue{})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusProcessing})

	err := m.Advance(context.Background(), req.ID)
	assert.ErrorIs(t, err, boom)

	got := store.row(req.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "deadlock detected", got.LastError)
	assert.NotNil(t, got.LastAttemptAt)
	assert.Nil(t, got.ProcessedAt)
}

func TestAdvanceRemoteFailure(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{report: &adsapi.Report{ReportID: "R-1", Status: adsapi.RemoteFailed, FailureReason: "internal error"}}
	m := newTestManager(store, source, &fakeIngester{}, &fakeQueue{})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusProcessing})

	err := m.Advance(context.Background(), req.ID)
	assert.ErrorIs(t, err, ErrRemoteReportFailed)

	got := store.row(req.ID)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "internal error", got.LastError)
	assert.NotNil(t, got.LastAttemptAt)
}

func TestAdvanceUnknownRemoteStatusFails(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{report: &adsapi.Report{ReportID: "R-1", Status: "CANCELLED"}}
	m := newTestManager(store, source, &fakeIngester{}, &fakeQueue{})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})

	assert.ErrorIs(t, m.Advance(context.Background(), req.ID), ErrRemoteReportFailed)
	assert.Equal(t, StatusFailed, store.row(req.ID).Status)
}

func TestAdvanceSourceErrorLeavesStatus(t *testing.T) {
	store := newMemStore()
	boom := errors.New("timeout")
	m := newTestManager(store, &fakeSource{statusErr: boom}, &fakeIngester{}, &fakeQueue{})
	req := store.put(ReportRequest{CompanyID: 1, ReportID: "R-1", ReportType: models.ReportTypeCampaign, Status: StatusPending})

	assert.ErrorIs(t, m.Advance(context.Background(), req.ID), boom)

	got := store.row(req.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.LastAttemptAt)
}

func TestAdvanceMissingRequest(t *testing.T) {
	m := newTestManager(newMemStore(), &fakeSource{}, &fakeIngester{}, &fakeQueue{})
	assert.ErrorIs(t, m.Advance(context.Background(), 42), ErrNotFound)
}
