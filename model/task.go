// Package model holds the task record shared by the recurrence engine, the
// reminder advisor and the task service. Field names and JSON keys match the
// blobs persisted by the mobile client.
package model

// Priority ranks a task for reminder scheduling.
type Priority string

const (
	PriorityCritical  Priority = "critical"
	PriorityImportant Priority = "important"
	PriorityNormal    Priority = "normal"
	PriorityLow       Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityImportant, PriorityNormal, PriorityLow:
		return true
	default:
		return false
	}
}

// Pattern is the repeat rule of a recurring task.
type Pattern string

const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
	PatternYearly  Pattern = "yearly"
)

// Valid reports whether p is one of the known patterns.
func (p Pattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly, PatternYearly:
		return true
	default:
		return false
	}
}

// MonthlyOption selects how a monthly task advances.
type MonthlyOption string

const (
	// MonthlyByDay keeps the numeric day of month, clamped to the month length.
	MonthlyByDay MonthlyOption = "day"
	// MonthlyByWeekday keeps the "Nth weekday of month" position.
	MonthlyByWeekday MonthlyOption = "weekday"
)

// RecurrenceDetails carries pattern specific options.
type RecurrenceDetails struct {
	// Days lists weekdays for weekly tasks, 0 = Sunday .. 6 = Saturday.
	Days []int `json:"days,omitempty" validate:"omitempty,dive,min=0,max=6"`
	// MonthlyOption is only read for monthly tasks. Empty means MonthlyByDay.
	MonthlyOption MonthlyOption `json:"monthlyOption,omitempty" validate:"omitempty,oneof=day weekday"`
}

// Clone returns a deep copy of d. A nil receiver yields nil.
func (d *RecurrenceDetails) Clone() *RecurrenceDetails {
	if d == nil {
		return nil
	}
	out := *d
	if d.Days != nil {
		out.Days = append([]int(nil), d.Days...)
	}
	return &out
}

// Task is a single task occurrence.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title" validate:"required,notblank"`
	Deadline    string   `json:"deadline,omitempty"`
	Priority    Priority `json:"priority" validate:"omitempty,oneof=critical important normal low"`
	Context     string   `json:"context,omitempty"`
	ProjectID   string   `json:"projectId,omitempty"`
	IsCompleted bool     `json:"isCompleted"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Steps       []string `json:"steps,omitempty"`

	IsRecurring       bool               `json:"isRecurring"`
	RecurrencePattern Pattern            `json:"recurrencePattern,omitempty" validate:"omitempty,oneof=daily weekly monthly yearly"`
	RecurrenceDetails *RecurrenceDetails `json:"recurrenceDetails,omitempty"`

	// NotificationTime is the reminder lead in minutes. Zero lets the
	// advisor pick one.
	NotificationTime int    `json:"notificationTime,omitempty" validate:"min=0"`
	NotificationID   string `json:"notificationId,omitempty"`
	CalendarEventID  string `json:"calendarEventId,omitempty"`
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	out := t
	if t.Steps != nil {
		out.Steps = append([]string(nil), t.Steps...)
	}
	out.RecurrenceDetails = t.RecurrenceDetails.Clone()
	return out
}
