package recurrence

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cyp0633/libtaskrec/internal/clock"
)

// LeapDayPolicy decides where a yearly task due on February 29 lands in a
// year without one.
type LeapDayPolicy int

const (
	// LeapDayClamp moves the deadline to February 28.
	LeapDayClamp LeapDayPolicy = iota
	// LeapDayOverflow lets the date roll over to March 1.
	LeapDayOverflow
)

func (p LeapDayPolicy) String() string {
	switch p {
	case LeapDayOverflow:
		return "overflow"
	default:
		return "clamp"
	}
}

// ParseLeapDayPolicy accepts "clamp" or "overflow", case-insensitive.
// An empty string yields LeapDayClamp.
func ParseLeapDayPolicy(s string) (LeapDayPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clamp":
		return LeapDayClamp, nil
	case "overflow":
		return LeapDayOverflow, nil
	default:
		return LeapDayClamp, fmt.Errorf("unknown leap day policy %q", s)
	}
}

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Location is the zone calendar arithmetic runs in. Weekdays, month
	// boundaries and time-of-day are all read in this zone.
	Location *time.Location
	LeapDay  LeapDayPolicy
}

// DefaultEngineConfig follows the device zone and clamps leap days.
var DefaultEngineConfig = EngineConfig{
	Location: time.Local,
	LeapDay:  LeapDayClamp,
}

// UTCConfig pins arithmetic to UTC, handy for servers and tests.
var UTCConfig = EngineConfig{
	Location: time.UTC,
	LeapDay:  LeapDayClamp,
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp createdAt on successors.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator replaces the uuid based identity generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// WithLocation overrides the configured zone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		e.loc = loc
	}
}

// WithLeapDayPolicy overrides the configured leap day policy.
func WithLeapDayPolicy(p LeapDayPolicy) Option {
	return func(e *Engine) {
		e.leapDay = p
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		clock:   clock.RealClock{},
		newID:   uuid.NewString,
		loc:     config.Location,
		leapDay: config.LeapDay,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	return e
}
