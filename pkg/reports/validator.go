package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/models"
)

var (
	errMissingCompany = errors.New("company_id required")
	errInvalidPeriod  = errors.New("invalid period")
	errInvalidType    = errors.New("invalid report type")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	maxSpan time.Duration
}

// NewValidator rejects periods longer than maxSpan days. Zero disables the
// limit.
func NewValidator(maxSpanDays int) *Validator {
	return &Validator{maxSpan: time.Duration(maxSpanDays) * 24 * time.Hour}
}

// Validate checks req and normalises its report types: names are trimmed,
// duplicates dropped and an empty list expands to every type.
func (v *Validator) Validate(req *models.GenerateRequest) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}
	if req.CompanyID == 0 {
		return ValidationError{reason: errMissingCompany}
	}

	period, err := models.NewDateRange(strings.TrimSpace(req.StartDate), strings.TrimSpace(req.EndDate))
	if err != nil {
		return ValidationError{reason: fmt.Errorf("dates must be YYYY-MM-DD: %w", errInvalidPeriod)}
	}
	if !period.Valid() {
		return ValidationError{reason: fmt.Errorf("end_date before start_date: %w", errInvalidPeriod)}
	}
	if v.maxSpan > 0 && period.End.Sub(period.Start) >= v.maxSpan {
		return ValidationError{reason: fmt.Errorf("period longer than %d days: %w", int(v.maxSpan.Hours()/24), errInvalidPeriod)}
	}
	req.StartDate = period.Start.Format(models.DateLayout)
	req.EndDate = period.End.Format(models.DateLayout)

	if len(req.ReportTypes) == 0 {
		req.ReportTypes = append([]models.ReportType(nil), models.AllReportTypes...)
		return nil
	}

	seen := make(map[models.ReportType]struct{}, len(req.ReportTypes))
	types := make([]models.ReportType, 0, len(req.ReportTypes))
	for _, raw := range req.ReportTypes {
		rt, err := models.ParseReportType(strings.TrimSpace(string(raw)))
		if err != nil {
			return ValidationError{reason: fmt.Errorf("report type '%s' not supported: %w", raw, errInvalidType)}
		}
		if _, dup := seen[rt]; dup {
			continue
		}
		seen[rt] = struct{}{}
		types = append(types, rt)
	}
	req.ReportTypes = types
	return nil
}
