package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/jobs"
)

const defaultLockTTL = time.Hour

// Handlers runs report jobs delivered by a jobs.Worker.
type Handlers struct {
	manager *Manager
	locker  jobs.Locker
	lockTTL time.Duration
}

func NewHandlers(manager *Manager, locker jobs.Locker, lockTTL time.Duration) *Handlers {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Handlers{manager: manager, locker: locker, lockTTL: lockTTL}
}

func (h *Handlers) Register(w *jobs.Worker) {
	w.Register(jobs.KindReportProcess, h.Process)
	w.Register(jobs.KindReportGenerate, h.Generate)
}

// Process advances one request. Only one worker advances a given request at
// a time; a held lock defers the job.
func (h *Handlers) Process(ctx context.Context, job jobs.Job) error {
	requestID, err := job.Uint("request_id")
	if err != nil {
		return err
	}

	release, err := h.locker.Lock(ctx, processKey(requestID), h.lockTTL)
	if errors.Is(err, jobs.ErrLocked) {
		return fmt.Errorf("%w: %v", jobs.ErrRetryLater, err)
	}
	if err != nil {
		return err
	}
	defer release()

	err = h.manager.Advance(ctx, requestID)
	switch {
	case errors.Is(err, ErrRemoteReportFailed):
		// Advance already stored the failure on the request. The job is not
		// retried: request-level retries belong to the scheduler, which
		// re-dispatches after the cooldown up to the attempt ceiling.
		logger.Log.WithError(err).WithField("request_id", requestID).Info("remote report failed, leaving retry to scheduler")
		return nil
	case errors.Is(err, ErrNotFound):
		logger.Log.WithField("request_id", requestID).Warn("report request vanished, dropping job")
		return nil
	}
	return err
}

// Generate requests every report type named in the job payload.
func (h *Handlers) Generate(ctx context.Context, job jobs.Job) error {
	req, err := generateRequestFromJob(job)
	if err != nil {
		return err
	}
	period, err := models.NewDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return fmt.Errorf("parsing period: %w", err)
	}

	created, err := h.manager.RequestGenerations(ctx, req.CompanyID, period, req.ReportTypes)
	logger.Log.WithField("company_id", req.CompanyID).
		WithField("created", len(created)).
		Info("report generation job finished")
	return err
}

// GenerateJob wraps a validated request into a report.generate job.
func GenerateJob(req models.GenerateRequest) jobs.Job {
	types := make([]interface{}, 0, len(req.ReportTypes))
	for _, rt := range req.ReportTypes {
		types = append(types, string(rt))
	}
	return jobs.New(jobs.KindReportGenerate, fmt.Sprintf("company:%d", req.CompanyID), map[string]interface{}{
		"company_id":   req.CompanyID,
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
		"report_types": types,
	})
}

func generateRequestFromJob(job jobs.Job) (models.GenerateRequest, error) {
	companyID, err := job.Uint("company_id")
	if err != nil {
		return models.GenerateRequest{}, err
	}
	req := models.GenerateRequest{
		CompanyID: companyID,
		StartDate: job.String("start_date"),
		EndDate:   job.String("end_date"),
	}

	var raw []interface{}
	switch v := job.Payload["report_types"].(type) {
	case []interface{}:
		raw = v
	case []string:
		for _, s := range v {
			raw = append(raw, s)
		}
	}
	for _, item := range raw {
		s, _ := item.(string)
		rt, err := models.ParseReportType(s)
		if err != nil {
			return models.GenerateRequest{}, err
		}
		req.ReportTypes = append(req.ReportTypes, rt)
	}
	if len(req.ReportTypes) == 0 {
		req.ReportTypes = models.AllReportTypes
	}
	return req, nil
}
