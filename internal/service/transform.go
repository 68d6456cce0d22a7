package service

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"mlssync/internal/client/mls"
)

type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInt
	FieldDecimal
	FieldFloat
	FieldTime
	FieldDate
)

// FieldMap copies one upstream field into one column.
type FieldMap struct {
	Source string
	Column string
	Kind   FieldKind
}

// MappedRecord is a flat row keyed by column name. Missing or unparseable
// values are stored as NULL.
type MappedRecord map[string]any

// Transform maps raw into a row for c.Table. It is pure: the same input
// always yields the same row. rf_modification_timestamp falls back to
// ModificationTimestamp so every row carries the timestamp the cursor is
// built from.
func (c ResourceConfig) Transform(raw mls.RawRecord) (MappedRecord, error) {
	row := make(MappedRecord, len(c.Fields)+1)
	for _, f := range c.Fields {
		row[f.Column] = convertField(raw[f.Source], f.Kind)
	}
	key, _ := row[c.Key()].(string)
	if strings.TrimSpace(key) == "" {
		return nil, errMissingKey
	}
	if ts, ok := RecordTimestamp(raw); ok {
		row[timestampColumn] = ts
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	row[rawJSONColumn] = datatypes.JSON(body)
	return row, nil
}

// RecordTimestamp returns RFModificationTimestamp, or ModificationTimestamp
// when the former is absent.
func RecordTimestamp(raw mls.RawRecord) (time.Time, bool) {
	if ts, ok := parseTime(raw[timestampField]); ok {
		return ts, true
	}
	return parseTime(raw[fallbackTimestampField])
}

func convertField(v any, kind FieldKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case FieldString:
		if s, ok := toString(v); ok {
			return s
		}
	case FieldInt:
		if n, ok := toNumberString(v); ok {
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i
			}
			// 3.0 and 1e3 are whole numbers; 2.5 is malformed, not 2.
			if f, err := strconv.ParseFloat(n, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
				return int64(f)
			}
		}
	case FieldDecimal:
		if n, ok := toNumberString(v); ok {
			if d, err := decimal.NewFromString(n); err == nil {
				return d
			}
		}
	case FieldFloat:
		if n, ok := toNumberString(v); ok {
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	case FieldTime:
		if ts, ok := parseTime(v); ok {
			return ts
		}
	case FieldDate:
		if s, ok := v.(string); ok {
			if d, err := time.Parse(time.DateOnly, strings.TrimSpace(s)); err == nil {
				return d
			}
			if ts, ok := parseTime(s); ok {
				return ts.Truncate(24 * time.Hour)
			}
		}
	}
	return nil
}

func toString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toNumberString(v any) (string, bool) {
	switch val := v.(type) {
	case json.Number:
		return val.String(), true
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return "", false
	}
}

func parseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", time.DateOnly} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
