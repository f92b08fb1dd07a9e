// Package reminder picks how long before a deadline a reminder should fire.
package reminder

import (
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/model"
)

const (
	// DefaultLeadMinutes applies to tasks without a deadline.
	DefaultLeadMinutes = 30
	// MinLeadMinutes applies to overdue tasks.
	MinLeadMinutes = 15
	// UnknownPriorityLeadMinutes applies to priorities outside the table.
	UnknownPriorityLeadMinutes = 60
)

// step maps "less than Hours remaining" to a lead time.
type step struct {
	Hours   float64
	Minutes int
}

type ladder struct {
	steps []step
	rest  int
}

var ladders = map[model.Priority]ladder{
	model.PriorityCritical:  {steps: []step{{2, 15}, {5, 30}, {24, 60}}, rest: 120},
	model.PriorityImportant: {steps: []step{{3, 30}, {12, 60}}, rest: 120},
	model.PriorityNormal:    {steps: []step{{6, 60}}, rest: 120},
	model.PriorityLow:       {rest: 240},
}

func (l ladder) minutes(hoursLeft float64) int {
	for _, s := range l.steps {
		if hoursLeft < s.Hours {
			return s.Minutes
		}
	}
	return l.rest
}

// Advisor wraps the lead time rules with a clock and the zone used to read
// date-only deadlines.
type Advisor struct {
	clock clock.Clock
	loc   *time.Location
}

// NewAdvisor returns an Advisor. A nil clock means the system clock, a nil
// loc means time.Local.
func NewAdvisor(c clock.Clock, loc *time.Location) *Advisor {
	if c == nil {
		c = clock.RealClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Advisor{clock: c, loc: loc}
}

// LeadMinutes parses deadline and returns the lead time for now.
// Unparseable deadlines count as absent.
func (a *Advisor) LeadMinutes(priority model.Priority, deadline string) int {
	return LeadMinutesAt(priority, model.ParseTimestamp(deadline, a.loc), a.clock.Now())
}

// LeadMinutesAt returns how many minutes before deadline a reminder should
// fire when evaluated at now.
func LeadMinutesAt(priority model.Priority, deadline mo.Option[time.Time], now time.Time) int {
	d, ok := deadline.Get()
	if !ok {
		return DefaultLeadMinutes
	}

	left := d.Sub(now)
	if left <= 0 {
		return MinLeadMinutes
	}

	l, ok := ladders[priority]
	if !ok {
		return UnknownPriorityLeadMinutes
	}
	return l.minutes(left.Hours())
}

// TriggerTime returns the instant minutesBefore ahead of deadline, or None
// when that instant is not after now.
func TriggerTime(deadline time.Time, minutesBefore int, now time.Time) mo.Option[time.Time] {
	at := deadline.Add(-time.Duration(minutesBefore) * time.Minute)
	if !at.After(now) {
		return mo.None[time.Time]()
	}
	return mo.Some(at)
}
