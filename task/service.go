// Package task keeps the user's task list. It persists the list through a
// storage.KV, completes recurring tasks through the recurrence engine and
// keeps reminders and calendar entries in step with each edit.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cyp0633/libtaskrec/calendar"
	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/model"
	"github.com/cyp0633/libtaskrec/notify"
	"github.com/cyp0633/libtaskrec/recurrence"
	"github.com/cyp0633/libtaskrec/reminder"
	"github.com/cyp0633/libtaskrec/storage"
)

// StorageKey is the key the task list is stored under.
const StorageKey = "tasks"

const (
	quickAddContext          = "Urgent"
	quickAddNotificationTime = 15
	reminderBodyLayout       = "2 January 15:04"
)

// Service owns the task list. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	kv        storage.KV
	engine    *recurrence.Engine
	advisor   *reminder.Advisor
	scheduler notify.Scheduler
	publisher calendar.Publisher
	clock     clock.Clock
	newID     func() string
	logger    *slog.Logger
	validate  *validator.Validate

	tasks         []model.Task
	notifications bool
	calendarSync  bool
}

// Option represents a configuration option for the Service
type Option func(*Service)

// WithScheduler sets the reminder backend. Notifications start enabled when
// a scheduler is given.
func WithScheduler(s notify.Scheduler) Option {
	return func(svc *Service) {
		svc.scheduler = s
		svc.notifications = s != nil
	}
}

// WithPublisher sets the calendar backend. Integration stays off until
// SetCalendarIntegration(true) is called.
func WithPublisher(p calendar.Publisher) Option {
	return func(svc *Service) {
		svc.publisher = p
	}
}

// WithClock sets the time source used for createdAt and reminder triggers.
func WithClock(c clock.Clock) Option {
	return func(svc *Service) {
		if c != nil {
			svc.clock = c
		}
	}
}

// WithIDGenerator overrides uuid.NewString for new task IDs.
func WithIDGenerator(gen func() string) Option {
	return func(svc *Service) {
		if gen != nil {
			svc.newID = gen
		}
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(svc *Service) {
		if logger != nil {
			svc.logger = logger
		}
	}
}

// NewService creates a Service. A nil engine or advisor is replaced by a
// default one.
func NewService(kv storage.KV, engine *recurrence.Engine, advisor *reminder.Advisor, opts ...Option) *Service {
	svc := &Service{
		kv:       kv,
		engine:   engine,
		advisor:  advisor,
		clock:    clock.RealClock{},
		newID:    uuid.NewString,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.engine == nil {
		svc.engine = recurrence.NewEngine(recurrence.WithClock(svc.clock))
	}
	if svc.advisor == nil {
		svc.advisor = reminder.NewAdvisor(svc.clock, svc.engine.Location())
	}
	return svc
}

// Load replaces the in-memory list with the stored one. A missing key
// yields an empty list.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		if storage.IsNotFound(err) {
			s.logger.Debug("no stored tasks")
			s.tasks = nil
			return nil
		}
		return fmt.Errorf("loading tasks: %w", err)
	}

	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("decoding tasks: %w", err)
	}
	s.tasks = tasks
	s.logger.Debug("tasks loaded", "count", len(tasks))
	return nil
}

// List returns a copy of every task in storage order.
func (s *Service) List() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of the task with the given ID.
func (s *Service) Get(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, ErrNotFound
	}
	return s.tasks[i].Clone(), nil
}

// NotificationsEnabled reports whether reminders are being scheduled.
func (s *Service) NotificationsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notifications
}

// CalendarIntegrationEnabled reports whether tasks are mirrored to the calendar.
func (s *Service) CalendarIntegrationEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendarSync
}

// Add validates t, gives it a fresh ID and creation time and stores it.
func (s *Service) Add(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(ctx, t)
}

// QuickAdd stores a critical task due at the end of today.
func (s *Service) QuickAdd(ctx context.Context, title, projectID string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().In(s.engine.Location())
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, int(999*time.Millisecond), now.Location())

	return s.add(ctx, model.Task{
		Title:            strings.TrimSpace(title),
		Deadline:         model.FormatTimestamp(endOfDay),
		Priority:         model.PriorityCritical,
		Context:          quickAddContext,
		ProjectID:        projectID,
		NotificationTime: quickAddNotificationTime,
	})
}

func (s *Service) add(ctx context.Context, t model.Task) (model.Task, error) {
	if err := validateTask(s.validate, t); err != nil {
		return model.Task{}, err
	}

	t = t.Clone()
	t.ID = s.newID()
	t.CreatedAt = model.FormatTimestamp(s.clock.Now())
	t.NotificationID = ""

	var fx effects
	s.scheduleReminder(ctx, &t, &fx)
	s.publish(ctx, &t, &fx)

	if err := s.commit(ctx, append(s.snapshot(), t), &fx); err != nil {
		return model.Task{}, err
	}

	s.logger.Info("task added", "id", t.ID, "title", t.Title)
	return t.Clone(), nil
}

// Update replaces the stored task with the same ID. Completing a recurring
// task also stores its successor. Reminder and calendar handles are kept from
// the stored task.
func (s *Service) Update(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(ctx, t)
}

// ToggleComplete flips the completion flag of the task with the given ID.
func (s *Service) ToggleComplete(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return model.Task{}, ErrNotFound
	}
	t := s.tasks[i].Clone()
	t.IsCompleted = !t.IsCompleted
	return s.update(ctx, t)
}

func (s *Service) update(ctx context.Context, updated model.Task) (model.Task, error) {
	i := s.indexOf(updated.ID)
	if i < 0 {
		return model.Task{}, ErrNotFound
	}
	if err := validateTask(s.validate, updated); err != nil {
		return model.Task{}, err
	}

	existing := s.tasks[i]
	updated = updated.Clone()
	updated.NotificationID = existing.NotificationID
	updated.CalendarEventID = existing.CalendarEventID

	var fx effects
	if !existing.IsCompleted && updated.IsCompleted {
		s.cancelReminder(&updated, &fx)

		if updated.IsRecurring {
			if next, ok := s.engine.Next(updated).Get(); ok {
				s.scheduleReminder(ctx, &next, &fx)
				s.publish(ctx, &next, &fx)
				fx.refresh(updated)

				tasks := make([]model.Task, 0, len(s.tasks)+1)
				for j, t := range s.tasks {
					if j != i {
						tasks = append(tasks, t)
					}
				}
				tasks = append(tasks, updated, next)
				if err := s.commit(ctx, tasks, &fx); err != nil {
					return model.Task{}, err
				}

				s.logger.Info("recurring task completed",
					"id", updated.ID,
					"next_id", next.ID,
					"next_deadline", next.Deadline)
				return updated.Clone(), nil
			}
		}
	} else if !updated.IsCompleted && existing.Deadline != updated.Deadline {
		s.scheduleReminder(ctx, &updated, &fx)
	}

	fx.refresh(updated)

	tasks := s.snapshot()
	tasks[i] = updated
	if err := s.commit(ctx, tasks, &fx); err != nil {
		return model.Task{}, err
	}

	s.logger.Debug("task updated", "id", updated.ID)
	return updated.Clone(), nil
}

// Delete removes the task with the given ID, cancelling its reminder and
// calendar entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}

	t := s.tasks[i].Clone()
	var fx effects
	s.cancelReminder(&t, &fx)
	if t.CalendarEventID != "" {
		fx.removes = append(fx.removes, t.CalendarEventID)
	}

	tasks := make([]model.Task, 0, len(s.tasks)-1)
	tasks = append(tasks, s.tasks[:i]...)
	tasks = append(tasks, s.tasks[i+1:]...)
	if err := s.commit(ctx, tasks, &fx); err != nil {
		return err
	}

	s.logger.Info("task deleted", "id", id)
	return nil
}

// SetNotifications turns reminders on or off. Turning them on asks the
// scheduler for permission and schedules every open task with a deadline.
// Turning them off cancels everything.
func (s *Service) SetNotifications(ctx context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		if enabled {
			return ErrNoScheduler
		}
		s.notifications = false
		return nil
	}

	tasks := s.snapshot()

	if !enabled {
		for i := range tasks {
			tasks[i].NotificationID = ""
		}
		if err := s.save(ctx, tasks); err != nil {
			return err
		}
		s.notifications = false
		if err := s.scheduler.CancelAll(ctx); err != nil {
			s.logger.Warn("failed to cancel reminders", "error", err)
		}
		return nil
	}

	granted, err := s.scheduler.Authorize(ctx)
	if err != nil {
		s.notifications = false
		return fmt.Errorf("requesting notification permission: %w", err)
	}
	if !granted {
		s.notifications = false
		return ErrPermissionDenied
	}

	was := s.notifications
	s.notifications = true
	var fx effects
	for i := range tasks {
		if !tasks[i].IsCompleted && tasks[i].Deadline != "" {
			s.scheduleReminder(ctx, &tasks[i], &fx)
		}
	}
	if err := s.commit(ctx, tasks, &fx); err != nil {
		s.notifications = was
		return err
	}
	return nil
}

// SetCalendarIntegration turns calendar mirroring on or off. Existing
// entries are left as they are.
func (s *Service) SetCalendarIntegration(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if enabled && s.publisher == nil {
		return ErrNoPublisher
	}
	s.calendarSync = enabled
	return nil
}

// effects records the collaborator calls of one edit. Handles and events
// issued for the edit are undone if the save fails; cancellations, removals
// and calendar refreshes of stored state only run once the save succeeded.
type effects struct {
	scheduled []string
	published []string
	cancels   []string
	removes   []string
	refreshes []model.Task
}

func (fx *effects) refresh(t model.Task) {
	if t.CalendarEventID != "" {
		fx.refreshes = append(fx.refreshes, t.Clone())
	}
}

// commit saves tasks and then settles fx against the outcome.
func (s *Service) commit(ctx context.Context, tasks []model.Task, fx *effects) error {
	if err := s.save(ctx, tasks); err != nil {
		s.rollback(ctx, fx)
		return err
	}

	for _, handle := range fx.cancels {
		s.cancelHandle(ctx, handle)
	}
	for _, eventID := range fx.removes {
		s.removeEvent(ctx, eventID)
	}
	if s.calendarSync && s.publisher != nil {
		for _, t := range fx.refreshes {
			if _, err := s.publisher.Publish(ctx, t); err != nil {
				s.logger.Warn("failed to refresh calendar event", "id", t.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *Service) rollback(ctx context.Context, fx *effects) {
	for _, handle := range fx.scheduled {
		s.cancelHandle(ctx, handle)
	}
	for _, eventID := range fx.published {
		s.removeEvent(ctx, eventID)
	}
	if n := len(fx.scheduled) + len(fx.published); n > 0 {
		s.logger.Debug("rolled back collaborator changes", "count", n)
	}
}

// scheduleReminder replaces t's reminder with one derived from its current
// deadline. Failures leave t without a handle.
func (s *Service) scheduleReminder(ctx context.Context, t *model.Task, fx *effects) {
	if s.scheduler == nil || !s.notifications || t.IsCompleted {
		return
	}

	s.cancelReminder(t, fx)

	deadline, ok := t.DeadlineTime(s.engine.Location()).Get()
	if !ok {
		return
	}

	minutes := t.NotificationTime
	if minutes <= 0 {
		minutes = s.advisor.LeadMinutes(t.Priority, t.Deadline)
	}

	at, ok := reminder.TriggerTime(deadline, minutes, s.clock.Now()).Get()
	if !ok {
		s.logger.Debug("reminder time already passed",
			"id", t.ID,
			"deadline", t.Deadline,
			"minutes_before", minutes)
		return
	}

	handle, err := s.scheduler.Schedule(ctx, at, notify.Payload{
		Title: "Reminder: " + t.Title,
		Body:  "Due: " + deadline.In(s.engine.Location()).Format(reminderBodyLayout),
		Data: map[string]string{
			notify.DataType:     "task",
			notify.DataTaskID:   t.ID,
			notify.DataPriority: string(t.Priority),
		},
	})
	if err != nil {
		s.logger.Warn("failed to schedule reminder", "id", t.ID, "error", err)
		return
	}
	t.NotificationID = handle
	fx.scheduled = append(fx.scheduled, handle)
}

// cancelReminder detaches t's reminder; the scheduler drops it on commit.
func (s *Service) cancelReminder(t *model.Task, fx *effects) {
	if t.NotificationID == "" {
		return
	}
	fx.cancels = append(fx.cancels, t.NotificationID)
	t.NotificationID = ""
}

func (s *Service) cancelHandle(ctx context.Context, handle string) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Cancel(ctx, handle); err != nil {
		s.logger.Warn("failed to cancel reminder", "handle", handle, "error", err)
	}
}

// publish creates a calendar entry for a task that has a deadline.
func (s *Service) publish(ctx context.Context, t *model.Task, fx *effects) {
	if !s.calendarSync || s.publisher == nil || t.Deadline == "" {
		return
	}
	eventID, err := s.publisher.Publish(ctx, *t)
	if err != nil {
		s.logger.Warn("failed to publish task", "id", t.ID, "error", err)
		return
	}
	t.CalendarEventID = eventID
	fx.published = append(fx.published, eventID)
}

func (s *Service) removeEvent(ctx context.Context, eventID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Remove(ctx, eventID); err != nil {
		s.logger.Warn("failed to remove calendar event", "event_id", eventID, "error", err)
	}
}

func (s *Service) save(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encoding tasks: %w", err)
	}
	if err := s.kv.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("saving tasks: %w", err)
	}
	s.tasks = tasks
	return nil
}

// snapshot returns a shallow copy of the list for building the next state.
func (s *Service) snapshot() []model.Task {
	return append([]model.Task(nil), s.tasks...)
}

func (s *Service) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
