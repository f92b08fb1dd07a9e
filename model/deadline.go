package model

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// ISOLayout is the millisecond UTC layout produced by Date.toISOString on the
// client. Every timestamp written by this module uses it.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

var deadlineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp reads an ISO timestamp. Date-only values are placed at
// midnight in loc. Anything unparseable is None.
func ParseTimestamp(raw string, loc *time.Location) mo.Option[time.Time] {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return mo.None[time.Time]()
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return mo.Some(t)
		}
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return mo.Some(t)
	}
	return mo.None[time.Time]()
}

// FormatTimestamp renders t in ISOLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// DeadlineTime parses the task deadline. See ParseTimestamp.
func (t Task) DeadlineTime(loc *time.Location) mo.Option[time.Time] {
	return ParseTimestamp(t.Deadline, loc)
}
