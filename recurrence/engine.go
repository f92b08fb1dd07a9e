// Package recurrence computes the successor of a completed recurring task.
//
// All functions are pure apart from reading the injected clock to stamp the
// creation time of a successor, so an Engine is safe for concurrent use.
package recurrence

import (
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/model"
)

// Engine advances recurring task deadlines.
type Engine struct {
	clock   clock.Clock
	newID   func() string
	loc     *time.Location
	leapDay LeapDayPolicy
	logger  *slog.Logger
}

// NewEngine creates a new recurrence engine instance
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

// Location returns the zone the engine computes in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Next builds the next occurrence of a just completed task. It returns None
// when the task is not recurring or its pattern is unknown; that is a normal
// outcome meaning no successor should be created.
//
// The successor has a fresh ID, is not completed, is stamped with the current
// time and carries no notification or calendar handles. Everything else is
// copied. A missing or unparseable deadline is carried over untouched.
func (e *Engine) Next(task model.Task) mo.Option[model.Task] {
	if !task.IsRecurring || !task.RecurrencePattern.Valid() {
		return mo.None[model.Task]()
	}

	next := task.Clone()
	next.ID = e.newID()

	if deadline, ok := task.DeadlineTime(e.loc).Get(); ok {
		advanced, _ := e.NextDeadline(task.RecurrencePattern, task.RecurrenceDetails, deadline)
		next.Deadline = model.FormatTimestamp(advanced)
	} else if task.Deadline != "" {
		e.logger.Debug("deadline not parseable, carrying over",
			"task_id", task.ID,
			"deadline", task.Deadline)
	}

	next.IsCompleted = false
	next.CreatedAt = model.FormatTimestamp(e.clock.Now())
	next.NotificationID = ""
	next.CalendarEventID = ""

	e.logger.Debug("created next occurrence",
		"task_id", task.ID,
		"next_id", next.ID,
		"pattern", task.RecurrencePattern,
		"deadline", next.Deadline)

	return mo.Some(next)
}

// NextDeadline advances deadline by one step of pattern. ok is false for an
// unknown pattern, in which case deadline is returned unchanged.
func (e *Engine) NextDeadline(pattern model.Pattern, details *model.RecurrenceDetails, deadline time.Time) (time.Time, bool) {
	d := deadline.In(e.loc)

	switch pattern {
	case model.PatternDaily:
		return d.AddDate(0, 0, 1), true

	case model.PatternWeekly:
		if details != nil && len(details.Days) > 0 {
			if days, ok := NextWeekdayInSet(d.Weekday(), details.Days); ok {
				return d.AddDate(0, 0, days), true
			}
		}
		return d.AddDate(0, 0, 7), true

	case model.PatternMonthly:
		if details != nil && details.MonthlyOption == model.MonthlyByWeekday {
			year, month, day := d.Date()
			ordinal := WeekdayOrdinal(day)
			ny, nm, _ := time.Date(year, month+1, 1, 0, 0, 0, 0, e.loc).Date()
			return NthWeekdayOfMonth(ny, nm, d.Weekday(), ordinal, d), true
		}
		return AddMonthsClamped(d, 1), true

	case model.PatternYearly:
		return e.addYear(d), true
	}

	return deadline, false
}

func (e *Engine) addYear(d time.Time) time.Time {
	year, month, day := d.Date()
	if e.leapDay == LeapDayClamp && month == time.February && day == 29 && !IsLeapYear(year+1) {
		return time.Date(year+1, time.February, 28, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
	}
	return d.AddDate(1, 0, 0)
}

// Occurrences lists the next n deadlines of a recurring task, starting after
// its current deadline. It returns nil when the task would produce no
// successor or has no usable deadline.
func (e *Engine) Occurrences(task model.Task, n int) []time.Time {
	if n <= 0 || !task.IsRecurring || !task.RecurrencePattern.Valid() {
		return nil
	}
	cur, ok := task.DeadlineTime(e.loc).Get()
	if !ok {
		return nil
	}

	out := make([]time.Time, 0, n)
	for range n {
		cur, _ = e.NextDeadline(task.RecurrencePattern, task.RecurrenceDetails, cur)
		out = append(out, cur)
	}
	return out
}
