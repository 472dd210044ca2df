package datasetapi

import (
	"fmt"
	"strings"
	"time"
)

// dateTimeLayouts are tried in order. Layouts without a zone are interpreted
// in the local time zone.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006",
	"02 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"2006-01",
	"2006",
}

// ParseDateTime parses a free-form date/time string into a timestamp with
// second precision.
func ParseDateTime(raw string) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date/time")
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date/time %q", raw)
}
