package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/observability/metrics"
	"github.com/sirupsen/logrus"
)

// ErrRetryLater asks the worker to run the job again after the retry delay
// without counting a failed attempt.
var ErrRetryLater = errors.New("retry later")

type Handler func(ctx context.Context, job Job) error

type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = time.Hour
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Minute
	}
	return o
}

type Worker struct {
	queue    Enqueuer
	dlq      Publisher
	handlers map[Kind]Handler
	opts     Options
}

func NewWorker(queue Enqueuer, dlq Publisher, opts Options) *Worker {
	return &Worker{
		queue:    queue,
		dlq:      dlq,
		handlers: make(map[Kind]Handler),
		opts:     opts.withDefaults(),
	}
}

func (w *Worker) Register(kind Kind, handler Handler) {
	w.handlers[kind] = handler
}

// Handle runs one job delivered by the consumer. It returns an error only when
// the job could not be handed back to the queue; the consumer then leaves the
// message uncommitted and it is redelivered.
func (w *Worker) Handle(ctx context.Context, event models.Event) error {
	job, err := FromEvent(event)
	if err != nil {
		w.deadLetter(ctx, Job{ID: event.ID, Kind: Kind(event.Type), Payload: event.Data}, err)
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_kind": job.Kind,
		"attempt":  job.Attempt,
	})

	handler, ok := w.handlers[job.Kind]
	if !ok {
		w.deadLetter(ctx, job, fmt.Errorf("no handler for job kind %q", job.Kind))
		return nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	started := time.Now()
	err = handler(jobCtx, job)
	cancel()
	if err == nil {
		log.WithField("duration", time.Since(started).String()).Info("job completed")
		return nil
	}

	if errors.Is(err, ErrRetryLater) {
		log.WithError(err).Info("job deferred")
		return w.queue.Enqueue(ctx, job, w.opts.RetryDelay)
	}

	job.Attempt++
	if job.Attempt < w.opts.MaxAttempts {
		log.WithError(err).Warn("job failed; retrying")
		metrics.JobRetried()
		return w.queue.Enqueue(ctx, job, w.opts.RetryDelay*time.Duration(job.Attempt))
	}

	log.WithError(err).Error("job failed; retries exhausted")
	w.deadLetter(ctx, job, err)
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, job Job, cause error) {
	metrics.JobDeadLettered()
	if w.dlq == nil {
		return
	}
	data, err := job.eventData()
	if err != nil {
		data = map[string]interface{}{"id": job.ID, "kind": job.Kind}
	}
	data["error"] = cause.Error()
	if err := w.dlq.PublishEvent(ctx, string(job.Kind), jobSource, job.Key, data); err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Error("failed to push job to DLQ")
	}
}
