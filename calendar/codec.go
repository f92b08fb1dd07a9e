// Package calendar maps tasks to iCalendar VTODO objects and defines the
// collaborator that mirrors tasks into an external calendar.
package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cyp0633/libtaskrec/model"
	"github.com/cyp0633/libtaskrec/recurrence"
)

const productID = "-//libtaskrec//Task Export//EN"

var (
	// ErrNoTodo is returned when a calendar holds no VTODO.
	ErrNoTodo = errors.New("calendar contains no VTODO")
	// ErrMissingID is returned when a task without an ID is encoded.
	ErrMissingID = errors.New("task id required")
)

const (
	statusCompleted   = "COMPLETED"
	statusNeedsAction = "NEEDS-ACTION"
)

// RFC 5545 priorities: 1 is highest, 9 lowest, 0 undefined.
var icalPriority = map[model.Priority]int{
	model.PriorityCritical:  1,
	model.PriorityImportant: 3,
	model.PriorityNormal:    5,
	model.PriorityLow:       9,
}

func priorityFromICal(v int) model.Priority {
	switch {
	case v >= 1 && v <= 2:
		return model.PriorityCritical
	case v >= 3 && v <= 4:
		return model.PriorityImportant
	case v >= 5 && v <= 6:
		return model.PriorityNormal
	case v >= 7 && v <= 9:
		return model.PriorityLow
	default:
		return ""
	}
}

// TaskComponent builds the VTODO for task. Date-only deadlines are read in loc.
func TaskComponent(task model.Task, now time.Time, loc *time.Location) (*ical.Component, error) {
	if strings.TrimSpace(task.ID) == "" {
		return nil, ErrMissingID
	}

	todo := ical.NewComponent(ical.CompToDo)
	todo.Props.SetText(ical.PropUID, task.ID)
	todo.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	todo.Props.SetText(ical.PropSummary, task.Title)

	if task.Notes != "" {
		todo.Props.SetText(ical.PropDescription, task.Notes)
	}
	if task.Context != "" {
		todo.Props.SetText(ical.PropCategories, task.Context)
	}
	if created, ok := model.ParseTimestamp(task.CreatedAt, loc).Get(); ok {
		todo.Props.SetDateTime(ical.PropCreated, created.UTC())
	}
	if p, ok := icalPriority[task.Priority]; ok {
		prio := ical.NewProp(ical.PropPriority)
		prio.Value = strconv.Itoa(p)
		todo.Props.Set(prio)
	}

	status := statusNeedsAction
	if task.IsCompleted {
		status = statusCompleted
	}
	todo.Props.SetText(ical.PropStatus, status)

	deadline := task.DeadlineTime(loc)
	if d, ok := deadline.Get(); ok {
		todo.Props.SetDateTime(ical.PropDue, d.UTC())
	}

	if task.IsRecurring && task.RecurrencePattern.Valid() {
		rule, err := recurrence.ToRRule(task.RecurrencePattern, task.RecurrenceDetails, deadline)
		if err != nil {
			return nil, fmt.Errorf("failed to build RRULE: %w", err)
		}
		rrule := ical.NewProp(ical.PropRecurrenceRule)
		rrule.Value = rule
		todo.Props.Set(rrule)
	}

	if task.NotificationTime > 0 && deadline.IsPresent() {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, task.Title)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = fmt.Sprintf("-PT%dM", task.NotificationTime)
		alarm.Props.Set(trigger)
		todo.Children = append(todo.Children, alarm)
	}

	return todo, nil
}

// EncodeTask renders task as a VCALENDAR holding a single VTODO.
func EncodeTask(task model.Task, now time.Time, loc *time.Location) ([]byte, error) {
	todo, err := TaskComponent(task, now, loc)
	if err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Children = append(cal.Children, todo)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTask reads the first VTODO of an iCalendar stream back into a task.
func DecodeTask(data []byte) (model.Task, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil {
		return model.Task{}, fmt.Errorf("failed to decode calendar: %w", err)
	}

	for _, child := range cal.Children {
		if child.Name == ical.CompToDo {
			return taskFromComponent(child)
		}
	}
	return model.Task{}, ErrNoTodo
}

func taskFromComponent(comp *ical.Component) (model.Task, error) {
	var task model.Task

	task.ID, _ = comp.Props.Text(ical.PropUID)
	task.Title, _ = comp.Props.Text(ical.PropSummary)
	task.Notes, _ = comp.Props.Text(ical.PropDescription)
	task.Context, _ = comp.Props.Text(ical.PropCategories)

	if status, _ := comp.Props.Text(ical.PropStatus); strings.EqualFold(status, statusCompleted) {
		task.IsCompleted = true
	}
	if prop := comp.Props.Get(ical.PropPriority); prop != nil {
		if v, err := strconv.Atoi(strings.TrimSpace(prop.Value)); err == nil {
			task.Priority = priorityFromICal(v)
		}
	}
	if due, err := comp.Props.DateTime(ical.PropDue, time.UTC); err == nil && !due.IsZero() {
		task.Deadline = model.FormatTimestamp(due)
	}
	if created, err := comp.Props.DateTime(ical.PropCreated, time.UTC); err == nil && !created.IsZero() {
		task.CreatedAt = model.FormatTimestamp(created)
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		pattern, details, err := recurrence.FromRRule(prop.Value)
		if err != nil {
			return model.Task{}, fmt.Errorf("task %s: %w", task.ID, err)
		}
		task.IsRecurring = true
		task.RecurrencePattern = pattern
		task.RecurrenceDetails = details
	}

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		trigger := child.Props.Get(ical.PropTrigger)
		if trigger == nil {
			continue
		}
		if d, err := trigger.Duration(); err == nil && d < 0 {
			task.NotificationTime = int(-d / time.Minute)
			break
		}
	}

	return task, nil
}
