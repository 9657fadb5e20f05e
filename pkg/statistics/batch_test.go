package statistics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func mustRange(start, end string) models.DateRange {
	r, _ := models.NewDateRange(start, end)
	return r
}

func TestBatchDedupeLastWins(t *testing.T) {
	cost := catalog.Definition{ID: 1, Name: "cost", ValueType: catalog.ValueDecimal}
	clicks := catalog.Definition{ID: 2, Name: "clicks", ValueType: catalog.ValueInteger}

	b := NewBatch(4)
	first := Statistic{CompanyID: 1, EntityType: "campaign", EntityID: 5, StartDate: day("2024-01-01"), EndDate: day("2024-01-01"), ReportID: "R1"}
	other := Statistic{CompanyID: 1, EntityType: "campaign", EntityID: 6, StartDate: day("2024-01-01"), EndDate: day("2024-01-01"), ReportID: "R1"}
	last := first
	last.ReportID = "R2"

	b.Add(first, []Entry{{Definition: cost, Value: float64(1)}, {Definition: clicks, Value: float64(3)}})
	b.Add(other, []Entry{{Definition: cost, Value: float64(2)}})
	b.Add(last, []Entry{{Definition: cost, Value: float64(9)}, {Definition: cost, Value: float64(10)}})
	require.Equal(t, 3, b.Len())

	stats, entries := b.Dedupe()

	require.Len(t, stats, 2)
	assert.Equal(t, "R2", stats[0].ReportID)
	assert.Equal(t, uint(6), stats[1].EntityID)

	require.Len(t, entries, 2)
	assert.Equal(t, other.Key(), entries[0].Key)
	assert.Equal(t, first.Key(), entries[1].Key)
	assert.Equal(t, float64(10), entries[1].Value)

	b.Reset()
	assert.Zero(t, b.Len())
}

func TestEncodeNumeric(t *testing.T) {
	tests := []struct {
		name      string
		valueType catalog.ValueType
		raw       interface{}
		want      string
		keep      bool
		wantErr   bool
	}{
		{name: "decimal", valueType: catalog.ValueDecimal, raw: float64(12.5), want: "12.5", keep: true},
		{name: "decimal rounds to column scale", valueType: catalog.ValueDecimal, raw: "1.23456789", want: "1.234568", keep: true},
		{name: "json number", valueType: catalog.ValueDecimal, raw: json.Number("3.10"), want: "3.1", keep: true},
		{name: "integer truncates", valueType: catalog.ValueInteger, raw: float64(7.9), want: "7", keep: true},
		{name: "integer below one is zero", valueType: catalog.ValueInteger, raw: "0.4", keep: false},
		{name: "zero", valueType: catalog.ValueDecimal, raw: float64(0), keep: false},
		{name: "nil", valueType: catalog.ValueDecimal, raw: nil, keep: false},
		{name: "empty string", valueType: catalog.ValueDecimal, raw: "  ", keep: false},
		{name: "date", valueType: catalog.ValueDate, raw: "2024-03-09", want: "20240309", keep: true},
		{name: "compact date", valueType: catalog.ValueDate, raw: "20240309", want: "20240309", keep: true},
		{name: "bad number", valueType: catalog.ValueDecimal, raw: "n/a", wantErr: true},
		{name: "bad date", valueType: catalog.ValueDate, raw: "March", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep, err := encodeNumeric(tt.valueType, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.keep, keep)
			if tt.keep {
				assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), got.String())
			}
		})
	}
}

func TestEncodeString(t *testing.T) {
	v, keep := encodeString(" ENABLED ")
	assert.True(t, keep)
	assert.Equal(t, "ENABLED", v)

	_, keep = encodeString("")
	assert.False(t, keep)
	_, keep = encodeString(float64(0))
	assert.False(t, keep)
	_, keep = encodeString(nil)
	assert.False(t, keep)

	v, keep = encodeString(float64(12345678))
	assert.True(t, keep)
	assert.Equal(t, "12345678", v)
}

func TestEncodeStringDropsZeroText(t *testing.T) {
	for _, raw := range []string{"0", " 0.00 ", "-0", "0e3"} {
		_, keep := encodeString(raw)
		assert.False(t, keep, "%q", raw)
		_, keepNumeric, err := encodeNumeric(catalog.ValueDecimal, raw)
		require.NoError(t, err)
		assert.False(t, keepNumeric, "%q", raw)
	}

	for raw, want := range map[string]string{"abc": "abc", "1.50": "1.50", " 007 ": "007", "0x": "0x"} {
		v, keep := encodeString(raw)
		assert.True(t, keep, "%q", raw)
		assert.Equal(t, want, v)
	}
}

func TestRowPeriod(t *testing.T) {
	report := mustRange("2024-01-01", "2024-01-31")
	period, err := rowPeriod(models.Row{"date": "2024-01-15"}, report)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-15"), period.Start)
	assert.Equal(t, day("2024-01-15"), period.End)

	period, err = rowPeriod(models.Row{}, report)
	require.NoError(t, err)
	assert.Equal(t, day("2024-01-01"), period.Start)
	assert.Equal(t, day("2024-01-31"), period.End)

	_, err = rowPeriod(models.Row{"date": "yesterday"}, report)
	assert.Error(t, err)
}

func TestRowEntriesDropsDateFieldsAndUnknownMetrics(t *testing.T) {
	cat := catalog.NewCatalog(map[string]catalog.Definition{
		"cost": {ID: 1, Name: "cost", ValueType: catalog.ValueDecimal},
		"date": {ID: 2, Name: "date", ValueType: catalog.ValueDate},
	})
	entries := rowEntries(models.Row{"date": "2024-01-01", "cost": float64(3), "campaignName": "x"}, cat)

	require.Len(t, entries, 1)
	assert.Equal(t, "cost", entries[0].Definition.Name)
}
