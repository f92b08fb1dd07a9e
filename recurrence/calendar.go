package recurrence

import (
	"slices"
	"time"
)

// IsLeapYear reports whether year has a February 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month normalises to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// WeekdayOrdinal returns which occurrence of its weekday a day of month is,
// 1 for days 1-7 up to 5 for days 29-31.
func WeekdayOrdinal(dayOfMonth int) int {
	return (dayOfMonth + 6) / 7
}

// AddMonthsClamped moves t by n calendar months keeping the day of month and
// clock time. Days past the end of the target month are clamped to its last day.
func AddMonthsClamped(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	ty, tm, _ := target.Date()
	if last := DaysInMonth(ty, tm); day > last {
		day = last
	}
	return time.Date(ty, tm, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// NthWeekdayOfMonth returns the nth wd of the given month with the clock time
// of clock. The result is not clamped: a 5th occurrence that does not exist
// lands in the following month.
func NthWeekdayOfMonth(year int, month time.Month, wd time.Weekday, n int, clock time.Time) time.Time {
	first := time.Date(year, month, 1, clock.Hour(), clock.Minute(), clock.Second(), clock.Nanosecond(), clock.Location())
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// NextWeekdayInSet returns how many days after today the next selected
// weekday falls. Today itself is never selected; when every selected day is
// at or before today the search wraps to the first one of the next week.
// ok is false when days holds no valid weekday.
func NextWeekdayInSet(today time.Weekday, days []int) (int, bool) {
	set := normalizeDays(days)
	if len(set) == 0 {
		return 0, false
	}
	cur := int(today)
	for _, d := range set {
		if d > cur {
			return d - cur, true
		}
	}
	return 7 - cur + set[0], true
}

// normalizeDays drops values outside 0..6, sorts and de-duplicates.
func normalizeDays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d >= 0 && d <= 6 {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
