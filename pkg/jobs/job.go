package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/google/uuid"
)

type Kind string

const (
	KindReportProcess  Kind = "report.process"
	KindReportGenerate Kind = "report.generate"
)

// Job is the unit of work carried on the jobs topic. Attempt counts failed
// executions of this job, not the attempts of the report request it serves.
type Job struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"kind"`
	Key        string                 `json:"key,omitempty"`
	Payload    map[string]interface{} `json:"payload"`
	Attempt    int                    `json:"attempt"`
	EnqueuedAt time.Time              `json:"enqueued_at"`
}

// New builds a job. key selects the partition; jobs sharing a key stay ordered.
func New(kind Kind, key string, payload map[string]interface{}) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Key:        key,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

func (j Job) eventData() (map[string]interface{}, error) {
	raw, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// FromEvent decodes a job from the event envelope it was published in.
func FromEvent(event models.Event) (Job, error) {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, fmt.Errorf("decoding job: %w", err)
	}
	if job.Kind == "" {
		job.Kind = Kind(event.Type)
	}
	if job.ID == "" {
		job.ID = event.ID
	}
	return job, nil
}

// Uint reads a numeric payload field. JSON round trips turn ids into float64.
func (j Job) Uint(field string) (uint, error) {
	switch v := j.Payload[field].(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("payload field %s negative", field)
		}
		return uint(v), nil
	case uint:
		return v, nil
	case int:
		return uint(v), nil
	case json.Number:
		n, err := v.Int64()
		return uint(n), err
	default:
		return 0, fmt.Errorf("payload field %s missing", field)
	}
}

func (j Job) String(field string) string {
	s, _ := j.Payload[field].(string)
	return s
}
