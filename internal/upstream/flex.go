package upstream

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

var nullLiteral = []byte("null")

// FlexString accepts JSON strings, numbers and booleans.
type FlexString struct {
	Value string
	Valid bool
}

// Str builds a populated FlexString.
func Str(v string) FlexString {
	return FlexString{Value: v, Valid: true}
}

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, nullLiteral) {
		*f = FlexString{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Valid: true}
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		// Structured values are not scalars; treat them as absent.
		*f = FlexString{}
		return nil
	}
	*f = FlexString{Value: string(data), Valid: true}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return nullLiteral, nil
	}
	return json.Marshal(f.Value)
}

// Populated reports whether the value is present and not blank.
func (f FlexString) Populated() bool {
	return f.Valid && strings.TrimSpace(f.Value) != ""
}

// FlexBool accepts booleans, 0/1 numbers and their string forms.
type FlexBool struct {
	Value bool
	Valid bool
}

func (f *FlexBool) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if !s.Valid {
		*f = FlexBool{}
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s.Value)) {
	case "true", "1", "yes":
		*f = FlexBool{Value: true, Valid: true}
	case "false", "0", "no", "":
		*f = FlexBool{Value: false, Valid: true}
	default:
		*f = FlexBool{}
	}
	return nil
}

// FlexTime accepts dates, date-times and unix timestamps. Floating marks a
// value that carried no zone; its wall clock belongs to the school's zone.
type FlexTime struct {
	Value    time.Time
	Valid    bool
	Floating bool
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var floatingLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = FlexTime{}
	if !s.Populated() {
		return nil
	}
	raw := strings.TrimSpace(s.Value)
	if t, floating, ok := parseTime(raw); ok {
		*f = FlexTime{Value: t, Valid: true, Floating: floating}
	}
	return nil
}

// In places the value in loc. Floating values keep their wall clock, zoned
// values keep their instant. A nil loc leaves the value untouched.
func (f FlexTime) In(loc *time.Location) time.Time {
	if loc == nil {
		return f.Value
	}
	if !f.Floating {
		return f.Value.In(loc)
	}
	y, m, d := f.Value.Date()
	hh, mm, ss := f.Value.Clock()
	return time.Date(y, m, d, hh, mm, ss, f.Value.Nanosecond(), loc)
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return nullLiteral, nil
	}
	return json.Marshal(f.Value)
}

// parseTime reports the parsed value and whether it carried no zone.
func parseTime(raw string) (time.Time, bool, bool) {
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, false, true
		}
	}
	for _, layout := range floatingLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true, true
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
		if n > 1e12 {
			return time.UnixMilli(n), false, true
		}
		return time.Unix(n, 0), false, true
	}
	return time.Time{}, false, false
}

// FirstString returns the first populated value, trimmed.
func FirstString(values ...FlexString) *string {
	for _, v := range values {
		if v.Populated() {
			s := strings.TrimSpace(v.Value)
			return &s
		}
	}
	return nil
}

// FirstTime returns the first valid timestamp placed in loc.
func FirstTime(loc *time.Location, values ...FlexTime) *time.Time {
	for _, v := range values {
		if v.Valid {
			t := v.In(loc)
			return &t
		}
	}
	return nil
}

// FirstBool returns the first valid flag or the fallback.
func FirstBool(fallback bool, values ...FlexBool) bool {
	for _, v := range values {
		if v.Valid {
			return v.Value
		}
	}
	return fallback
}
