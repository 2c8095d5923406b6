package models

import (
	"strings"
	"time"
)

// SupportedTimestampFormats lists formats we attempt to parse
var SupportedTimestampFormats = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.UnixDate,
}

// Normalize applies field normalization to a Reading
// - upper-cases AssetID
// - trims MetricID
// - converts Timestamp to UTC
func (r *Reading) Normalize() {
	// Asset tags are upper-case by convention (PUMP-402, COMPR-003)
	r.AssetID = strings.ToUpper(strings.TrimSpace(r.AssetID))

	// Metric identifiers keep their case (Pressure_psi), only trim
	r.MetricID = strings.TrimSpace(r.MetricID)

	if !r.Timestamp.IsZero() {
		r.Timestamp = r.Timestamp.UTC()
	}
}

// ParseTimestamp attempts to parse a timestamp string into time.Time
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)

	for _, format := range SupportedTimestampFormats {
		if t, err := time.Parse(format, ts); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}
