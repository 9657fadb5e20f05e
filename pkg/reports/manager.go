package reports

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adpulse-ai/platform/pkg/adsapi"
	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/adpulse-ai/platform/pkg/observability/metrics"
	"github.com/adpulse-ai/platform/pkg/statistics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

const (
	DefaultPollDelay         = 15 * time.Minute
	DefaultGenerationWorkers = 4
)

// ErrRemoteReportFailed is returned when the platform reports a failed or
// unrecognised state for a report.
var ErrRemoteReportFailed = errors.New("remote report failed")

// Source is the advertising platform. *adsapi.Client implements it.
type Source interface {
	RequestReport(ctx context.Context, companyID uint, period models.DateRange, reportType models.ReportType) (string, error)
	ReportStatus(ctx context.Context, companyID uint, reportID string) (*adsapi.Report, error)
}

// Ingester is satisfied by *statistics.Normalizer.
type Ingester interface {
	Ingest(ctx context.Context, companyID uint, reportID string, meta models.ReportMetadata, rows []models.Row) (statistics.IngestResult, error)
}

type ManagerOptions struct {
	PollDelay         time.Duration
	GenerationWorkers int
	// Ceiling bounds the attempts a request may accumulate, counting both
	// scheduler dispatches and self-scheduled polls.
	Ceiling           int
}

type Manager struct {
	store     Store
	source    Source
	ingester  Ingester
	queue     jobs.Enqueuer
	pollDelay time.Duration
	workers   int
	ceiling   int
	now       func() time.Time
}

func NewManager(store Store, source Source, ingester Ingester, queue jobs.Enqueuer, opts ManagerOptions) *Manager {
	if opts.PollDelay <= 0 {
		opts.PollDelay = DefaultPollDelay
	}
	if opts.GenerationWorkers <= 0 {
		opts.GenerationWorkers = DefaultGenerationWorkers
	}
	if opts.Ceiling <= 0 {
		opts.Ceiling = DefaultPolicy().Ceiling
	}
	return &Manager{
		store:     store,
		source:    source,
		ingester:  ingester,
		queue:     queue,
		pollDelay: opts.PollDelay,
		workers:   opts.GenerationWorkers,
		ceiling:   opts.Ceiling,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestGeneration asks the platform for one report and records it as
// pending. A duplicate submission reuses the report id the platform returns.
func (m *Manager) RequestGeneration(ctx context.Context, companyID uint, period models.DateRange, reportType models.ReportType) (*ReportRequest, error) {
	reportID, err := m.source.RequestReport(ctx, companyID, period, reportType)
	if err != nil {
		var dup *adsapi.DuplicateReportError
		if !errors.As(err, &dup) {
			return nil, fmt.Errorf("requesting %s report: %w", reportType, err)
		}
		logger.Log.WithFields(logrus.Fields{
			"company_id":  companyID,
			"report_type": reportType,
			"report_id":   dup.ReportID,
		}).Info("duplicate report request, reusing existing report")
		reportID = dup.ReportID
	}

	req := &ReportRequest{
		CompanyID:  companyID,
		ReportID:   reportID,
		ReportType: reportType,
		StartDate:  period.Start,
		EndDate:    period.End,
		Status:     StatusPending,
		Attempts:   0,
	}
	if err := m.store.FirstOrCreate(ctx, req); err != nil {
		return nil, err
	}
	metrics.RequestCreated()
	return req, nil
}

// GenerationError lists the report types that could not be requested.
type GenerationError struct {
	Failures []GenerationFailure
}

type GenerationFailure struct {
	ReportType models.ReportType
	Err        error
}

func (e *GenerationError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ReportType, f.Err))
	}
	return "report generation failed for " + strconv.Itoa(len(e.Failures)) + " type(s): " + strings.Join(parts, "; ")
}

func (e *GenerationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// RequestGenerations requests every type, with bounded concurrency. One type
// failing does not stop the others; the successful requests are returned
// together with a *GenerationError naming the failures.
func (m *Manager) RequestGenerations(ctx context.Context, companyID uint, period models.DateRange, reportTypes []models.ReportType) ([]ReportRequest, error) {
	results := make([]*ReportRequest, len(reportTypes))
	failures := make([]error, len(reportTypes))

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, rt := range reportTypes {
		g.Go(func() error {
			req, err := m.RequestGeneration(ctx, companyID, period, rt)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = req
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []ReportRequest
		genErr GenerationError
	)
	for i, rt := range reportTypes {
		if failures[i] != nil {
			genErr.Failures = append(genErr.Failures, GenerationFailure{ReportType: rt, Err: failures[i]})
			continue
		}
		out = append(out, *results[i])
	}
	if len(genErr.Failures) > 0 {
		logger.Log.WithFields(logrus.Fields{
			"company_id": companyID,
			"failed":     len(genErr.Failures),
			"requested":  len(reportTypes),
		}).Warn("some report types could not be requested")
		return out, &genErr
	}
	return out, nil
}

// Advance polls the platform for one request and moves it along its
// lifecycle. Completed requests are left untouched.
func (m *Manager) Advance(ctx context.Context, requestID uint) error {
	req, err := m.store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req.Status.IsTerminal() {
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"report_id":   req.ReportID,
		"report_type": req.ReportType,
		"company_id":  req.CompanyID,
	})

	report, err := m.source.ReportStatus(ctx, req.CompanyID, req.ReportID)
	if err != nil {
		return fmt.Errorf("fetching status of report %s: %w", req.ReportID, err)
	}

	switch report.Status {
	case adsapi.RemotePending, adsapi.RemoteProcessing:
		return m.schedulePoll(ctx, req, report.Status, log)

	case adsapi.RemoteCompleted:
		return m.ingest(ctx, req, report, log)

	default:
		now := m.now()
		reason := report.FailureReason
		if reason == "" {
			reason = fmt.Sprintf("remote status %q", report.Status)
		}
		if err := m.store.UpdateStatus(ctx, req, StatusFailed, map[string]interface{}{
			"last_attempt_at": now,
			"last_error":      reason,
		}); err != nil {
			return err
		}
		metrics.RequestFailed()
		log.WithField("reason", reason).Warn("remote report failed")
		return fmt.Errorf("%w: %s", ErrRemoteReportFailed, reason)
	}
}

// schedulePoll counts the next poll as an attempt, the same as a scheduler
// dispatch, so a report the platform never finishes stops at the ceiling.
func (m *Manager) schedulePoll(ctx context.Context, req *ReportRequest, remote adsapi.RemoteStatus, log *logrus.Entry) error {
	if req.Attempts >= m.ceiling {
		return m.exhaust(ctx, req, log)
	}
	if err := m.store.UpdateStatus(ctx, req, StatusProcessing, nil); err != nil {
		return err
	}
	if err := m.store.MarkDispatched(ctx, req, m.now(), m.ceiling); err != nil {
		return err
	}
	if req.Status == StatusFailed {
		return m.exhaust(ctx, req, log)
	}

	job := jobs.New(jobs.KindReportProcess, processKey(req.ID), map[string]interface{}{"request_id": req.ID})
	if err := m.queue.Enqueue(ctx, job, m.pollDelay); err != nil {
		return fmt.Errorf("scheduling poll for request %d: %w", req.ID, err)
	}
	log.WithFields(logrus.Fields{
		"remote_status": remote,
		"attempts":      req.Attempts,
	}).Debug("report not ready, poll scheduled")
	return nil
}

func (m *Manager) exhaust(ctx context.Context, req *ReportRequest, log *logrus.Entry) error {
	reason := fmt.Sprintf("report still generating after %d attempts", req.Attempts)
	if err := m.store.UpdateStatus(ctx, req, StatusFailed, map[string]interface{}{
		"last_error": reason,
	}); err != nil {
		return err
	}
	metrics.RequestFailed()
	log.WithField("attempts", req.Attempts).Warn("report request reached attempt ceiling")
	return nil
}

func (m *Manager) ingest(ctx context.Context, req *ReportRequest, report *adsapi.Report, log *logrus.Entry) error {
	result, ingestErr := m.ingester.Ingest(ctx, req.CompanyID, req.ReportID, report.Metadata, report.Rows)
	now := m.now()

	if ingestErr != nil {
		if err := m.store.UpdateStatus(ctx, req, StatusFailed, map[string]interface{}{
			"last_attempt_at": now,
			"last_error":      ingestErr.Error(),
		}); err != nil {
			log.WithError(err).Error("failed to record ingestion failure")
		}
		metrics.RequestFailed()
		return fmt.Errorf("ingesting report %s: %w", req.ReportID, ingestErr)
	}

	if err := m.store.UpdateStatus(ctx, req, StatusCompleted, map[string]interface{}{
		"processed_at":    now,
		"last_attempt_at": now,
		"last_error":      "",
		"metadata":        metadataJSON(report.Metadata, result),
	}); err != nil {
		return err
	}
	metrics.RequestCompleted()
	log.WithFields(logrus.Fields{
		"rows":    result.Rows,
		"skipped": result.Skipped,
		"flushes": result.Flushes,
	}).Info("report ingested")
	return nil
}

func metadataJSON(meta models.ReportMetadata, result statistics.IngestResult) datatypes.JSONMap {
	return datatypes.JSONMap{
		"report_type_id": meta.ReportTypeID,
		"ad_product":     meta.AdProduct,
		"start_date":     meta.StartDate,
		"end_date":       meta.EndDate,
		"rows":           result.Rows,
		"skipped":        result.Skipped,
	}
}

// processKey partitions process jobs by request so polls of one request stay
// ordered.
func processKey(requestID uint) string {
	return "report-request:" + strconv.FormatUint(uint64(requestID), 10)
}
