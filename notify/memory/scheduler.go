// Package memory is an in-memory notify.Scheduler for tests and the CLI.
package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/notify"
)

// Scheduler keeps pending reminders in a map keyed by handle.
type Scheduler struct {
	mu      sync.RWMutex
	pending map[string]notify.Scheduled
	granted bool
	clock   clock.Clock
	logger  *slog.Logger
}

// Option represents a configuration option for the Scheduler
type Option func(*Scheduler)

// WithLogger sets the logger for the scheduler
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used to reject reminders in the past.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithPermission sets the answer Authorize gives. Permission is granted by default.
func WithPermission(granted bool) Option {
	return func(s *Scheduler) {
		s.granted = granted
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		pending: make(map[string]notify.Scheduled),
		granted: true,
		clock:   clock.RealClock{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) Authorize(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.granted, nil
}

func (s *Scheduler) Schedule(ctx context.Context, at time.Time, p notify.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if now := s.clock.Now(); !at.After(now) {
		return "", fmt.Errorf("%w: %s is not after %s", notify.ErrInPast, at.Format(time.RFC3339), now.Format(time.RFC3339))
	}

	handle := uuid.NewString()
	p.Data = maps.Clone(p.Data)

	s.mu.Lock()
	s.pending[handle] = notify.Scheduled{Handle: handle, At: at, Payload: p}
	s.mu.Unlock()

	s.logger.Debug("notification scheduled",
		"handle", handle,
		"at", at,
		"title", p.Title)
	return handle, nil
}

func (s *Scheduler) Cancel(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[handle]; !ok {
		return fmt.Errorf("%w: %s", notify.ErrUnknownHandle, handle)
	}
	delete(s.pending, handle)

	s.logger.Debug("notification cancelled", "handle", handle)
	return nil
}

func (s *Scheduler) CancelAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	n := len(s.pending)
	clear(s.pending)
	s.mu.Unlock()

	s.logger.Debug("all notifications cancelled", "count", n)
	return nil
}

func (s *Scheduler) Pending(ctx context.Context) ([]notify.Scheduled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := slices.Collect(maps.Values(s.pending))
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b notify.Scheduled) int {
		return a.At.Compare(b.At)
	})
	return out, nil
}
