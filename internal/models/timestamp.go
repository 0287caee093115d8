package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is an ISO-8601 timestamp without a zone offset, as sent by
// backends that serialize naive datetimes. It is read as UTC.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp is a wire time that accepts RFC 3339 and zone-less ISO-8601
// values. It marshals as RFC 3339.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// AtPtr wraps t and returns a pointer, for optional fields.
func AtPtr(t time.Time) *Timestamp {
	ts := At(t)
	return &ts
}

// ParseTimestamp parses an RFC 3339 or zone-less ISO-8601 value.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return At(t), nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return At(t), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		*ts = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
