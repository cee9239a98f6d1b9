// Package mapper turns flat, join-produced rows into domain aggregates.
//
// A Row is a single record keyed by column name, holding whatever
// database/sql scanned into an any: []byte, string, int64, float64,
// time.Time or nil. Plans describe how columns land in a target type.
package mapper

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Row map[string]any

// Subset returns a new row holding only the given columns that are present
// in row. The source row is not modified.
func Subset(row Row, columns []string) Row {
	if row == nil {
		return nil
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02",
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

// number widens any Go integer or float kind to float64.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float32:
		f, err := strconv.ParseFloat(strconv.FormatFloat(float64(t), 'f', -1, 32), 64)
		return f, err == nil
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	f, ok := number(v)
	if !ok {
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int64(f), nil
}

func asFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case []byte:
		return strconv.ParseFloat(string(t), 64)
	case string:
		return strconv.ParseFloat(t, 64)
	}
	f, ok := number(v)
	if !ok {
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
	return f, nil
}

// asDecimal parses money from its text form so no float rounding sneaks in.
func asDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case []byte:
		return decimal.NewFromString(string(t))
	case string:
		return decimal.NewFromString(t)
	case int64:
		return decimal.NewFromInt(t), nil
	case float64:
		return decimal.NewFromString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return decimal.Zero, fmt.Errorf("cannot convert %T to decimal", v)
	}
}

func asTime(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case []byte:
		s = string(t)
	case string:
		s = t
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// truthy coerces integer flags and strings the way a TINYINT column reads:
// zero, "0", empty and NULL are false, anything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case []byte:
		return truthyString(string(t))
	case string:
		return truthyString(t)
	}
	if f, ok := number(v); ok {
		return f != 0
	}
	return true
}

func truthyString(s string) bool {
	if s == "" {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return true
}
