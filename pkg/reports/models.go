package reports

import (
	"time"

	"github.com/adpulse-ai/platform/pkg/common/models"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ReportRequest tracks one remote report from generation to ingestion. At most
// one row exists per company, report id, type and period.
type ReportRequest struct {
	ID            uint              `json:"id" gorm:"primaryKey;column:id"`
	CompanyID     uint              `json:"company_id" gorm:"column:company_id;not null;uniqueIndex:idx_report_requests_identity"`
	ReportID      string            `json:"report_id" gorm:"column:report_id;size:128;not null;uniqueIndex:idx_report_requests_identity"`
	ReportType    models.ReportType `json:"report_type" gorm:"column:report_type;size:32;not null;uniqueIndex:idx_report_requests_identity"`
	StartDate     time.Time         `json:"start_date" gorm:"column:start_date;type:date;not null;uniqueIndex:idx_report_requests_identity"`
	EndDate       time.Time         `json:"end_date" gorm:"column:end_date;type:date;not null;uniqueIndex:idx_report_requests_identity"`
	Status        Status            `json:"status" gorm:"column:status;size:16;not null;index"`
	Attempts      int               `json:"attempts" gorm:"column:attempts;not null;default:0"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty" gorm:"column:last_attempt_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty" gorm:"column:processed_at"`
	LastError     string            `json:"last_error,omitempty" gorm:"column:last_error;type:text"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"column:metadata"`
	CreatedAt     time.Time         `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"column:updated_at"`
}

func (ReportRequest) TableName() string {
	return "report_requests"
}
