package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"

	"github.com/cyp0633/libtaskrec/model"
)

var (
	// ErrUnsupportedPattern is returned when a pattern has no RRULE form.
	ErrUnsupportedPattern = errors.New("unsupported recurrence pattern")
	// ErrUnsupportedRule is returned when an RRULE cannot be expressed as a task pattern.
	ErrUnsupportedRule = errors.New("unsupported recurrence rule")
)

// Indexed by time.Weekday.
var rruleWeekdays = []rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ToRRule renders a task pattern as RRULE text (without the "RRULE:" prefix).
//
// Monthly rules need the deadline to know which day or weekday to anchor to;
// without one only the frequency is emitted. Day anchors past the 28th list
// every candidate day with BYSETPOS=-1 so short months clamp to their last day
// the same way the engine does.
func ToRRule(pattern model.Pattern, details *model.RecurrenceDetails, deadline mo.Option[time.Time]) (string, error) {
	var opt rrule.ROption

	switch pattern {
	case model.PatternDaily:
		opt.Freq = rrule.DAILY
	case model.PatternWeekly:
		opt.Freq = rrule.WEEKLY
		if details != nil {
			for _, d := range normalizeDays(details.Days) {
				opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
			}
		}
	case model.PatternMonthly:
		opt.Freq = rrule.MONTHLY
		if d, ok := deadline.Get(); ok {
			if details != nil && details.MonthlyOption == model.MonthlyByWeekday {
				opt.Byweekday = []rrule.Weekday{rruleWeekdays[d.Weekday()].Nth(WeekdayOrdinal(d.Day()))}
			} else if d.Day() > 28 {
				for day := 28; day <= d.Day(); day++ {
					opt.Bymonthday = append(opt.Bymonthday, day)
				}
				opt.Bysetpos = []int{-1}
			} else {
				opt.Bymonthday = []int{d.Day()}
			}
		}
	case model.PatternYearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPattern, pattern)
	}

	return opt.RRuleString(), nil
}

// FromRRule maps RRULE text back to a task pattern. Only rules ToRRule can
// produce are accepted; COUNT and UNTIL are ignored since tasks recur until
// the user stops them.
func FromRRule(s string) (model.Pattern, *model.RecurrenceDetails, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "RRULE:")
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse RRULE '%s': %w", s, err)
	}
	if opt.Interval > 1 {
		return "", nil, fmt.Errorf("%w: interval %d", ErrUnsupportedRule, opt.Interval)
	}

	switch opt.Freq {
	case rrule.DAILY:
		return model.PatternDaily, nil, nil

	case rrule.WEEKLY:
		if len(opt.Byweekday) == 0 {
			return model.PatternWeekly, nil, nil
		}
		days := make([]int, 0, len(opt.Byweekday))
		for i := range opt.Byweekday {
			days = append(days, weekdayIndex(opt.Byweekday[i]))
		}
		return model.PatternWeekly, &model.RecurrenceDetails{Days: normalizeDays(days)}, nil

	case rrule.MONTHLY:
		if len(opt.Byweekday) == 1 && opt.Byweekday[0].N() != 0 {
			return model.PatternMonthly, &model.RecurrenceDetails{MonthlyOption: model.MonthlyByWeekday}, nil
		}
		if len(opt.Byweekday) > 0 {
			return "", nil, fmt.Errorf("%w: monthly BYDAY without ordinal", ErrUnsupportedRule)
		}
		return model.PatternMonthly, &model.RecurrenceDetails{MonthlyOption: model.MonthlyByDay}, nil

	case rrule.YEARLY:
		return model.PatternYearly, nil, nil
	}

	return "", nil, fmt.Errorf("%w: frequency %v", ErrUnsupportedRule, opt.Freq)
}

// weekdayIndex converts an rrule weekday (0 = Monday) to time.Weekday order.
func weekdayIndex(wd rrule.Weekday) int {
	return (wd.Day() + 1) % 7
}
