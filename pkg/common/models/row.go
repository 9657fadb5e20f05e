package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// String returns the trimmed textual form of a row field, or "" when the
// field is missing or null. Numeric ids decoded from JSON come back as
// float64 and are rendered without an exponent.
func (r Row) String(key string) string {
	return stringValue(r[key])
}

// First returns the first non-empty field among keys.
func (r Row) First(keys ...string) string {
	for _, key := range keys {
		if v := r.String(key); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
