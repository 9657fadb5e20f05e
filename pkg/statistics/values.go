package statistics

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adpulse-ai/platform/pkg/catalog"
	"github.com/shopspring/decimal"
)

// valueScale matches the numeric(20,6) column so values compare equal to what
// the database stores.
const valueScale = 6

var errNotNumeric = errors.New("value is not numeric")

// parseDecimal reads a raw report value. ok is false for nil and empty values.
func parseDecimal(raw interface{}) (decimal.Decimal, bool, error) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false, nil
	case decimal.Decimal:
		return v, true, nil
	case float64:
		return decimal.NewFromFloat(v), true, nil
	case float32:
		return decimal.NewFromFloat32(v), true, nil
	case int:
		return decimal.NewFromInt(int64(v)), true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	case int32:
		return decimal.NewFromInt32(v), true, nil
	case uint:
		return decimal.NewFromInt(int64(v)), true, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil, err
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%w: %q", errNotNumeric, s)
		}
		return d, true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("%w: %T", errNotNumeric, raw)
	}
}

// encodeNumeric converts a raw value for the decimal tier according to the
// declared value type. keep is false for values the skip policy drops.
func encodeNumeric(valueType catalog.ValueType, raw interface{}) (decimal.Decimal, bool, error) {
	if valueType == catalog.ValueDate {
		return encodeDate(raw)
	}

	d, ok, err := parseDecimal(raw)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	if valueType == catalog.ValueInteger {
		d = d.Truncate(0)
	} else {
		d = d.Round(valueScale)
	}
	if d.IsZero() {
		return decimal.Zero, false, nil
	}
	return d, true, nil
}

// encodeDate stores calendar dates as YYYYMMDD.
func encodeDate(raw interface{}) (decimal.Decimal, bool, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false, nil
	case time.Time:
		s = v.Format("20060102")
	case string:
		s = strings.TrimSpace(v)
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return decimal.Zero, false, nil
	}

	for _, layout := range []string{"2006-01-02", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return decimal.NewFromInt(int64(t.Year()*10000 + int(t.Month())*100 + t.Day())), true, nil
		}
	}
	return decimal.Zero, false, fmt.Errorf("unparseable date %q", s)
}

// encodeString converts a raw value for the string tier. Empty strings and
// numeric zero, including numeric text such as "0" or "0.00", are dropped.
// Other numeric text keeps its original spelling.
func encodeString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(v)
		if d, ok, err := parseDecimal(s); err == nil && ok && d.IsZero() {
			return "", false
		}
		return s, s != ""
	}

	if d, ok, err := parseDecimal(raw); err == nil && ok {
		if d.IsZero() {
			return "", false
		}
		return d.String(), true
	}
	s := strings.TrimSpace(fmt.Sprint(raw))
	return s, s != ""
}
