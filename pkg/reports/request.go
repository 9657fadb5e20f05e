package reports

import "github.com/adpulse-ai/platform/pkg/common/models"

type GenerateWrapper struct {
	CompanyID   uint     `json:"company_id"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	ReportTypes []string `json:"report_types,omitempty"`
}

func (r GenerateWrapper) ToModel() models.GenerateRequest {
	types := make([]models.ReportType, 0, len(r.ReportTypes))
	for _, t := range r.ReportTypes {
		types = append(types, models.ReportType(t))
	}
	return models.GenerateRequest{
		CompanyID:   r.CompanyID,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		ReportTypes: types,
	}
}
