package statistics

import (
	"time"

	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/shopspring/decimal"
)

// Statistic is the identity bucket for one entity's numbers over one period.
// ReportID and AdTypeID are overwritten by the most recent ingest.
type Statistic struct {
	ID         uint      `json:"id" gorm:"primaryKey;column:id"`
	CompanyID  uint      `json:"company_id" gorm:"column:company_id;not null;uniqueIndex:idx_statistics_identity"`
	EntityType string    `json:"entity_type" gorm:"column:entity_type;size:32;not null;uniqueIndex:idx_statistics_identity"`
	EntityID   uint      `json:"entity_id" gorm:"column:entity_id;not null;uniqueIndex:idx_statistics_identity"`
	StartDate  time.Time `json:"start_date" gorm:"column:start_date;type:date;not null;uniqueIndex:idx_statistics_identity"`
	EndDate    time.Time `json:"end_date" gorm:"column:end_date;type:date;not null;uniqueIndex:idx_statistics_identity"`
	AdTypeID   uint      `json:"ad_type_id" gorm:"column:ad_type_id"`
	ReportID   string    `json:"report_id" gorm:"column:report_id;size:128"`
	CreatedAt  time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Statistic) TableName() string {
	return "statistics"
}

func (s Statistic) Key() Key {
	return Key{
		CompanyID:  s.CompanyID,
		EntityType: s.EntityType,
		EntityID:   s.EntityID,
		StartDate:  s.StartDate.Format(models.DateLayout),
		EndDate:    s.EndDate.Format(models.DateLayout),
	}
}

// MetricRecord is the slot linking a statistic to one catalog metric.
type MetricRecord struct {
	ID           uint      `json:"id" gorm:"primaryKey;column:id"`
	StatisticID  uint      `json:"statistic_id" gorm:"column:statistic_id;not null;uniqueIndex:idx_metric_records_slot"`
	MetricNameID uint      `json:"metric_name_id" gorm:"column:metric_name_id;not null;uniqueIndex:idx_metric_records_slot"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
}

func (MetricRecord) TableName() string {
	return "metric_records"
}

// MetricValueDecimal holds decimal, integer and date metrics. The value is
// part of the unique key, so a changed value for an existing slot adds a row.
type MetricValueDecimal struct {
	ID             uint            `json:"id" gorm:"primaryKey;column:id"`
	MetricRecordID uint            `json:"metric_record_id" gorm:"column:metric_record_id;not null;uniqueIndex:idx_metric_values_decimal_slot_value"`
	Value          decimal.Decimal `json:"value" gorm:"column:value;type:numeric(20,6);not null;uniqueIndex:idx_metric_values_decimal_slot_value"`
	CreatedAt      time.Time       `json:"created_at" gorm:"column:created_at"`
}

func (MetricValueDecimal) TableName() string {
	return "metric_values_decimal"
}

type MetricValueString struct {
	ID             uint      `json:"id" gorm:"primaryKey;column:id"`
	MetricRecordID uint      `json:"metric_record_id" gorm:"column:metric_record_id;not null;uniqueIndex:idx_metric_values_string_slot_value"`
	Value          string    `json:"value" gorm:"column:value;type:text;not null;uniqueIndex:idx_metric_values_string_slot_value"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at"`
}

func (MetricValueString) TableName() string {
	return "metric_values_string"
}

// Models lists the tables owned by the statistics store.
func Models() []interface{} {
	return []interface{}{&Statistic{}, &MetricRecord{}, &MetricValueDecimal{}, &MetricValueString{}}
}
