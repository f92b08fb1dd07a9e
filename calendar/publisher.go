package calendar

import (
	"context"

	"github.com/cyp0633/libtaskrec/model"
)

// Publisher mirrors tasks into an external calendar. The returned event ID
// is stored on the task as its calendar handle.
type Publisher interface {
	Publish(ctx context.Context, task model.Task) (eventID string, err error)
	Remove(ctx context.Context, eventID string) error
}
