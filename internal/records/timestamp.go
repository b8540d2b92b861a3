package records

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the layout written by the collectors.
const TimestampLayout = "2006-01-02T15:04:05Z"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts the formats found across the snapshots: Zulu and offset
// RFC 3339, naive ISO 8601 and space separated timestamps. Naive values are UTC.
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
