// Package notify defines the reminder delivery collaborator. Delivery itself
// is opaque: a Scheduler accepts an instant and a payload and hands back a
// handle that can later cancel it.
package notify

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInPast is returned when a reminder would fire at or before now.
	ErrInPast = errors.New("notification time already passed")
	// ErrUnknownHandle is returned when cancelling a handle the scheduler never issued.
	ErrUnknownHandle = errors.New("unknown notification handle")
)

// Payload data keys.
const (
	DataType     = "type"
	DataTaskID   = "taskId"
	DataPriority = "priority"
)

// Payload is what the user sees when a reminder fires.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// Scheduled is a pending reminder.
type Scheduled struct {
	Handle  string
	At      time.Time
	Payload Payload
}

// Scheduler is the interface notification backends implement.
type Scheduler interface {
	// Authorize asks for permission to deliver reminders.
	Authorize(ctx context.Context) (bool, error)
	// Schedule registers a reminder and returns its handle.
	Schedule(ctx context.Context, at time.Time, p Payload) (string, error)
	// Cancel drops a pending reminder.
	Cancel(ctx context.Context, handle string) error
	// CancelAll drops every pending reminder.
	CancelAll(ctx context.Context) error
	// Pending lists reminders that have not been cancelled, soonest first.
	Pending(ctx context.Context) ([]Scheduled, error)
}
