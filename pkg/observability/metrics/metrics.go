package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	requestsCreated    atomic.Int64
	requestsCompleted  atomic.Int64
	requestsFailed     atomic.Int64
	requestsDispatched atomic.Int64
	rowsIngested       atomic.Int64
	rowsSkipped        atomic.Int64
	flushes            atomic.Int64
	jobsRetried        atomic.Int64
	jobsDeadLettered   atomic.Int64
)

func RequestCreated() { requestsCreated.Add(1) }
func RequestCompleted() { requestsCompleted.Add(1) }
func RequestFailed() { requestsFailed.Add(1) }
func RequestDispatched() { requestsDispatched.Add(1) }
func JobRetried() { jobsRetried.Add(1) }
func JobDeadLettered() { jobsDeadLettered.Add(1) }

func ObserveIngest(rows, skipped, flushCount int) {
	rowsIngested.Add(int64(rows))
	rowsSkipped.Add(int64(skipped))
	flushes.Add(int64(flushCount))
}

type counter struct {
	name  string
	help  string
	value *atomic.Int64
}

var counters = []counter{
	{"adpulse_report_requests_created_total", "Report requests created or reused after a generation call.", &requestsCreated},
	{"adpulse_report_requests_completed_total", "Report requests that reached the completed state.", &requestsCompleted},
	{"adpulse_report_requests_failed_total", "Report requests marked failed.", &requestsFailed},
	{"adpulse_report_requests_dispatched_total", "Processing jobs dispatched by the scheduler.", &requestsDispatched},
	{"adpulse_statistics_rows_ingested_total", "Report rows buffered for upsert.", &rowsIngested},
	{"adpulse_statistics_rows_skipped_total", "Report rows skipped because the entity could not be resolved.", &rowsSkipped},
	{"adpulse_statistics_flushes_total", "Committed flush transactions.", &flushes},
	{"adpulse_jobs_retried_total", "Jobs re-enqueued after a handler failure.", &jobsRetried},
	{"adpulse_jobs_dead_lettered_total", "Jobs moved to the dead-letter topic.", &jobsDeadLettered},
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, c := range counters {
		fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(w, "%s %d\n", c.name, c.value.Load())
	}
}
