package models

import (
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // report.process, report.generate
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Row is one flat key/value line of a downloaded report.
type Row map[string]interface{}

// ReportMetadata describes a completed remote report.
type ReportMetadata struct {
	ReportTypeID string `json:"report_type_id"`
	AdProduct    string `json:"ad_product"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

const DateLayout = "2006-01-02"

func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: s, End: e}, nil
}

func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// GenerateRequest asks for a set of report types for one company and period.
type GenerateRequest struct {
	CompanyID   uint         `json:"company_id"`
	StartDate   string       `json:"start_date"`
	EndDate     string       `json:"end_date"`
	ReportTypes []ReportType `json:"report_types"`
}

type GenerateResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
