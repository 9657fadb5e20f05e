package statistics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/models"
)

// dateFields never become metrics; they only define the statistic period.
var dateFields = map[string]struct{}{
	"date":       {},
	"startdate":  {},
	"enddate":    {},
	"reportdate": {},
}

func isDateField(name string) bool {
	_, ok := dateFields[strings.ToLower(name)]
	return ok
}

// rowPeriod uses the row's own date when present and falls back to the
// report period otherwise.
func rowPeriod(row models.Row, report models.DateRange) (models.DateRange, error) {
	if day := row.First("date", "reportDate"); day != "" {
		t, err := parseDay(day)
		if err != nil {
			return models.DateRange{}, err
		}
		return models.DateRange{Start: t, End: t}, nil
	}

	period := report
	if start := row.String("startDate"); start != "" {
		t, err := parseDay(start)
		if err != nil {
			return models.DateRange{}, err
		}
		period.Start = t
	}
	if end := row.String("endDate"); end != "" {
		t, err := parseDay(end)
		if err != nil {
			return models.DateRange{}, err
		}
		period.End = t
	}
	return period, nil
}

func parseDay(s string) (time.Time, error) {
	for _, layout := range []string{models.DateLayout, "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// rowEntries turns the catalog-known, non-null fields of row into metric
// entries and appends the derived metrics. Fields are visited in name order so
// a flush is deterministic.
func rowEntries(row models.Row, cat catalog.Catalog) []Entry {
	names := make([]string, 0, len(row))
	for name := range row {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if isDateField(name) {
			continue
		}
		value := row[name]
		if value == nil {
			continue
		}
		def, ok := cat.Lookup(name)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Definition: def, Value: value})
	}

	for _, d := range Derive(row, cat) {
		entries = append(entries, Entry{Definition: d.Definition, Value: d.Value})
	}
	return entries
}
