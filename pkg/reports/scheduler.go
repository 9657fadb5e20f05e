package reports

import (
	"context"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/adpulse-ai/platform/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

const defaultTickLimit = 500

type TickResult struct {
	Selected   int `json:"selected"`
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
	Exhausted  int `json:"exhausted"`
}

// Scheduler re-dispatches unfinished requests whose cooldown elapsed.
type Scheduler struct {
	store  Store
	queue  jobs.Enqueuer
	policy Policy
	limit  int
	now    func() time.Time
}

func NewScheduler(store Store, queue jobs.Enqueuer, policy Policy) *Scheduler {
	if policy.Ceiling <= 0 {
		policy.Ceiling = DefaultPolicy().Ceiling
	}
	if policy.Cooldown <= 0 {
		policy.Cooldown = DefaultPolicy().Cooldown
	}
	return &Scheduler{
		store:  store,
		queue:  queue,
		policy: policy,
		limit:  defaultTickLimit,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Tick dispatches one process job per eligible request. A dispatch failure
// leaves the request untouched for the next tick.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	now := s.now()
	eligible, err := s.store.Eligible(ctx, s.policy, now, s.limit)
	if err != nil {
		return TickResult{}, err
	}

	result := TickResult{Selected: len(eligible)}
	for i := range eligible {
		req := &eligible[i]
		log := logger.Log.WithFields(logrus.Fields{
			"request_id": req.ID,
			"report_id":  req.ReportID,
			"attempts":   req.Attempts,
		})

		job := jobs.New(jobs.KindReportProcess, processKey(req.ID), map[string]interface{}{"request_id": req.ID})
		if err := s.queue.Enqueue(ctx, job, 0); err != nil {
			result.Failed++
			log.WithError(err).Error("failed to dispatch report request")
			continue
		}

		if err := s.store.MarkDispatched(ctx, req, now, s.policy.Ceiling); err != nil {
			result.Failed++
			log.WithError(err).Error("failed to record dispatch")
			continue
		}
		result.Dispatched++
		metrics.RequestDispatched()
		if req.Attempts >= s.policy.Ceiling {
			result.Exhausted++
			log.Warn("report request reached attempt ceiling")
		}
	}

	if result.Selected > 0 {
		logger.Log.WithFields(logrus.Fields{
			"selected":   result.Selected,
			"dispatched": result.Dispatched,
			"failed":     result.Failed,
			"exhausted":  result.Exhausted,
		}).Info("scheduler tick")
	}
	return result, nil
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			logger.Log.WithError(err).Error("scheduler tick failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
