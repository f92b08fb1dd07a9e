package reminder

import (
	"math"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/libtaskrec/model"
)

// urgentHours is the estimate for overdue work and the floor for short deadlines.
const urgentHours = 0.5

var baseHours = map[model.Priority]float64{
	model.PriorityCritical:  1,
	model.PriorityImportant: 2,
	model.PriorityNormal:    4,
	model.PriorityLow:       8,
}

// EstimateHours guesses how many hours a task will take from its priority,
// shortening the guess when the deadline is closer than that.
func EstimateHours(priority model.Priority, deadline mo.Option[time.Time], now time.Time) float64 {
	base, ok := baseHours[priority]
	if !ok {
		base = baseHours[model.PriorityNormal]
	}

	d, ok := deadline.Get()
	if !ok {
		return base
	}

	left := d.Sub(now).Hours()
	switch {
	case left < 0:
		return urgentHours
	case left < base:
		return math.Max(urgentHours, left*0.9)
	default:
		return base
	}
}

// EstimateHours runs the package level estimate against the advisor's clock.
func (a *Advisor) EstimateHours(priority model.Priority, deadline string) float64 {
	return EstimateHours(priority, model.ParseTimestamp(deadline, a.loc), a.clock.Now())
}
