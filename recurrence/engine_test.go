package recurrence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/model"
)

var testNow = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) *Engine {
	var (
		mu sync.Mutex
		n  int
	)
	ids := func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("gen-%d", n)
	}
	base := []Option{WithClock(clock.NewFakeClock(testNow)), WithIDGenerator(ids)}
	return NewEngineWithConfig(UTCConfig, append(base, opts...)...)
}

func recurringTask(pattern model.Pattern, deadline time.Time, details *model.RecurrenceDetails) model.Task {
	return model.Task{
		ID:                "orig",
		Title:             "Water the plants",
		Deadline:          model.FormatTimestamp(deadline),
		Priority:          model.PriorityImportant,
		Context:           "Home",
		ProjectID:         "3",
		IsCompleted:       true,
		CreatedAt:         "2023-12-01T00:00:00.000Z",
		Steps:             []string{"fill can", "water"},
		IsRecurring:       true,
		RecurrencePattern: pattern,
		RecurrenceDetails: details,
		NotificationTime:  45,
		NotificationID:    "notif-1",
		CalendarEventID:   "event-1",
	}
}

func nextDeadline(t *testing.T, e *Engine, task model.Task) time.Time {
	t.Helper()
	next, ok := e.Next(task).Get()
	require.True(t, ok, "expected a successor")
	d, ok := next.DeadlineTime(time.UTC).Get()
	require.True(t, ok, "successor deadline %q not parseable", next.Deadline)
	return d
}

func TestEngine_Next(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		pattern  model.Pattern
		details  *model.RecurrenceDetails
		deadline time.Time
		expected time.Time
	}{
		{
			name:     "Daily adds one day",
			pattern:  model.PatternDaily,
			deadline: time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 1, 18, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly without days adds seven days",
			pattern:  model.PatternWeekly,
			deadline: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly with empty days adds seven days",
			pattern:  model.PatternWeekly,
			details:  &model.RecurrenceDetails{Days: []int{}},
			deadline: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly Monday to Wednesday",
			pattern:  model.PatternWeekly,
			details:  &model.RecurrenceDetails{Days: []int{1, 3, 5}},
			deadline: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), // Monday
			expected: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly Friday wraps to next Monday",
			pattern:  model.PatternWeekly,
			details:  &model.RecurrenceDetails{Days: []int{1, 3, 5}},
			deadline: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), // Friday
			expected: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly single day never reselects today",
			pattern:  model.PatternWeekly,
			details:  &model.RecurrenceDetails{Days: []int{1}},
			deadline: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Weekly invalid days fall back to seven days",
			pattern:  model.PatternWeekly,
			details:  &model.RecurrenceDetails{Days: []int{8}},
			deadline: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by day keeps the day",
			pattern:  model.PatternMonthly,
			deadline: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by day clamps to leap February",
			pattern:  model.PatternMonthly,
			details:  &model.RecurrenceDetails{MonthlyOption: model.MonthlyByDay},
			deadline: time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by day clamps to common February",
			pattern:  model.PatternMonthly,
			deadline: time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by day crosses the year",
			pattern:  model.PatternMonthly,
			deadline: time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by weekday second Tuesday",
			pattern:  model.PatternMonthly,
			details:  &model.RecurrenceDetails{MonthlyOption: model.MonthlyByWeekday},
			deadline: time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 2, 13, 10, 0, 0, 0, time.UTC),
		},
		{
			// 5th Wednesday; counted from the first Wednesday of February.
			name:     "Monthly by weekday from the 31st counts from next month",
			pattern:  model.PatternMonthly,
			details:  &model.RecurrenceDetails{MonthlyOption: model.MonthlyByWeekday},
			deadline: time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by weekday fifth Friday overflows",
			pattern:  model.PatternMonthly,
			details:  &model.RecurrenceDetails{MonthlyOption: model.MonthlyByWeekday},
			deadline: time.Date(2024, 3, 29, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Monthly by weekday across the year",
			pattern:  model.PatternMonthly,
			details:  &model.RecurrenceDetails{MonthlyOption: model.MonthlyByWeekday},
			deadline: time.Date(2024, 12, 10, 10, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 1, 14, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "Yearly keeps month and day",
			pattern:  model.PatternYearly,
			deadline: time.Date(2024, 7, 4, 20, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 7, 4, 20, 0, 0, 0, time.UTC),
		},
		{
			name:     "Yearly leap day clamps",
			pattern:  model.PatternYearly,
			deadline: time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 2, 28, 20, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := recurringTask(tt.pattern, tt.deadline, tt.details)
			assert.Equal(t, tt.expected, nextDeadline(t, engine, task))
		})
	}
}

func TestEngine_NextResetsFields(t *testing.T) {
	engine := newTestEngine()

	for _, pattern := range []model.Pattern{model.PatternDaily, model.PatternWeekly, model.PatternMonthly, model.PatternYearly} {
		t.Run(string(pattern), func(t *testing.T) {
			task := recurringTask(pattern, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), nil)

			next, ok := engine.Next(task).Get()
			require.True(t, ok)

			assert.NotEqual(t, task.ID, next.ID)
			assert.False(t, next.IsCompleted)
			assert.Empty(t, next.NotificationID)
			assert.Empty(t, next.CalendarEventID)
			assert.Equal(t, model.FormatTimestamp(testNow), next.CreatedAt)

			assert.Equal(t, task.Title, next.Title)
			assert.Equal(t, task.Priority, next.Priority)
			assert.Equal(t, task.Context, next.Context)
			assert.Equal(t, task.ProjectID, next.ProjectID)
			assert.Equal(t, task.RecurrencePattern, next.RecurrencePattern)
			assert.Equal(t, task.NotificationTime, next.NotificationTime)
			assert.Equal(t, task.Steps, next.Steps)

			// The input is left alone.
			assert.True(t, task.IsCompleted)
			assert.Equal(t, "notif-1", task.NotificationID)
		})
	}
}

func TestEngine_NextNoSuccessor(t *testing.T) {
	engine := newTestEngine()
	deadline := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task model.Task
	}{
		{"not recurring", func() model.Task {
			task := recurringTask(model.PatternDaily, deadline, nil)
			task.IsRecurring = false
			return task
		}()},
		{"no pattern", recurringTask("", deadline, nil)},
		{"unknown pattern", recurringTask("fortnightly", deadline, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, engine.Next(tt.task).IsAbsent())
		})
	}
}

func TestEngine_NextWithoutDeadline(t *testing.T) {
	engine := newTestEngine()

	for _, raw := range []string{"", "not a date"} {
		task := recurringTask(model.PatternDaily, time.Time{}, nil)
		task.Deadline = raw

		next, ok := engine.Next(task).Get()
		require.True(t, ok, "deadline %q", raw)
		assert.Equal(t, raw, next.Deadline)
		assert.False(t, next.IsCompleted)
		assert.Empty(t, next.NotificationID)
		assert.NotEqual(t, task.ID, next.ID)
	}
}

func TestEngine_TwoCompletionsDaily(t *testing.T) {
	engine := newTestEngine()
	start := time.Date(2024, 2, 28, 21, 15, 0, 0, time.UTC)

	first, ok := engine.Next(recurringTask(model.PatternDaily, start, nil)).Get()
	require.True(t, ok)
	first.IsCompleted = true
	second, ok := engine.Next(first).Get()
	require.True(t, ok)

	d, ok := second.DeadlineTime(time.UTC).Get()
	require.True(t, ok)
	assert.Equal(t, 48*time.Hour, d.Sub(start))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngine_DailyIsTwentyFourHours(t *testing.T) {
	engine := newTestEngine()
	start := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)

	for i := 0; i < 400; i++ {
		d := start.AddDate(0, 0, i)
		got := nextDeadline(t, engine, recurringTask(model.PatternDaily, d, nil))
		require.Equal(t, 24*time.Hour, got.Sub(d), "from %s", d)
	}
}

func TestEngine_DailyKeepsWallClockAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	engine := newTestEngine(WithLocation(ny))

	// Clocks spring forward on 2024-03-10, so that day is 23 hours long.
	deadline := time.Date(2024, 3, 9, 12, 0, 0, 0, ny)
	got := nextDeadline(t, engine, recurringTask(model.PatternDaily, deadline, nil)).In(ny)

	assert.Equal(t, 10, got.Day())
	assert.Equal(t, 12, got.Hour())
	assert.Equal(t, 23*time.Hour, got.Sub(deadline))

	// And falling back on 2024-11-03 makes it 25.
	deadline = time.Date(2024, 11, 2, 12, 0, 0, 0, ny)
	got = nextDeadline(t, engine, recurringTask(model.PatternDaily, deadline, nil)).In(ny)
	assert.Equal(t, 12, got.Hour())
	assert.Equal(t, 25*time.Hour, got.Sub(deadline))
}

func TestEngine_MonthlyDayProperty(t *testing.T) {
	engine := newTestEngine()

	for month := time.January; month <= time.December; month++ {
		for day := 1; day <= DaysInMonth(2024, month); day++ {
			d := time.Date(2024, month, day, 6, 0, 0, 0, time.UTC)
			got := nextDeadline(t, engine, recurringTask(model.PatternMonthly, d, nil))

			ny, nm, _ := time.Date(2024, month+1, 1, 0, 0, 0, 0, time.UTC).Date()
			want := min(day, DaysInMonth(ny, nm))
			require.Equal(t, nm, got.Month(), "from %s", d)
			require.Equal(t, want, got.Day(), "from %s", d)
			require.Equal(t, 6, got.Hour())
		}
	}
}

func TestEngine_LeapDayPolicy(t *testing.T) {
	deadline := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)

	clamp := newTestEngine(WithLeapDayPolicy(LeapDayClamp))
	assert.Equal(t, time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC),
		nextDeadline(t, clamp, recurringTask(model.PatternYearly, deadline, nil)))

	overflow := newTestEngine(WithLeapDayPolicy(LeapDayOverflow))
	assert.Equal(t, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		nextDeadline(t, overflow, recurringTask(model.PatternYearly, deadline, nil)))

	// February 28 stays put even when the next year is a leap year.
	assert.Equal(t, time.Date(2028, 2, 28, 8, 0, 0, 0, time.UTC),
		nextDeadline(t, clamp, recurringTask(model.PatternYearly, time.Date(2027, 2, 28, 8, 0, 0, 0, time.UTC), nil)))
}

func TestEngine_Location(t *testing.T) {
	// 23:30 UTC on Friday is already Saturday in Moscow.
	msk := time.FixedZone("MSK", 3*60*60)
	engine := newTestEngine(WithLocation(msk))
	deadline := time.Date(2024, 1, 5, 23, 30, 0, 0, time.UTC)

	got := nextDeadline(t, engine, recurringTask(model.PatternWeekly, deadline, &model.RecurrenceDetails{Days: []int{1, 5}}))
	// Saturday in MSK -> Monday in MSK, two days later.
	want := deadline.AddDate(0, 0, 2)
	assert.True(t, want.Equal(got), "got %s want %s", got, want)
}

func TestEngine_Occurrences(t *testing.T) {
	engine := newTestEngine()
	task := recurringTask(model.PatternWeekly, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), &model.RecurrenceDetails{Days: []int{1, 3, 5}})

	got := engine.Occurrences(task, 4)
	require.Len(t, got, 4)
	assert.Equal(t, []int{3, 5, 8, 10}, []int{got[0].Day(), got[1].Day(), got[2].Day(), got[3].Day()})

	task.RecurrencePattern = "hourly"
	assert.Nil(t, engine.Occurrences(task, 4))

	task.RecurrencePattern = model.PatternDaily
	task.Deadline = ""
	assert.Nil(t, engine.Occurrences(task, 4))
}

func TestEngine_ConcurrentUse(t *testing.T) {
	engine := newTestEngine()
	task := recurringTask(model.PatternMonthly, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, ok := engine.Next(task).Get()
			assert.True(t, ok)
			assert.Equal(t, "2024-02-29T09:00:00.000Z", next.Deadline)
		}()
	}
	wg.Wait()
}

func TestParseLeapDayPolicy(t *testing.T) {
	p, err := ParseLeapDayPolicy("Overflow")
	require.NoError(t, err)
	assert.Equal(t, LeapDayOverflow, p)

	p, err = ParseLeapDayPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LeapDayClamp, p)

	_, err = ParseLeapDayPolicy("skip")
	assert.Error(t, err)
}
