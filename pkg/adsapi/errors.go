package adsapi

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrProfileNotFound = errors.New("ads profile not found")
	ErrReportNotReady  = errors.New("report has no download location")
)

// DuplicateReportError is returned when the platform rejects a request as a
// duplicate of a report it is already generating.
type DuplicateReportError struct {
	ReportID string
}

func (e *DuplicateReportError) Error() string {
	return fmt.Sprintf("duplicate of report %s", e.ReportID)
}

var duplicatePattern = regexp.MustCompile(`duplicate of\s*:\s*([A-Za-z0-9-]+)`)

// parseDuplicate extracts the existing report id from a 425 response body.
func parseDuplicate(body string) (string, bool) {
	m := duplicatePattern.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
