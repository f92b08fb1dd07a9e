// Package config reads taskrec settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/cyp0633/libtaskrec/calendar/caldav"
	"github.com/cyp0633/libtaskrec/recurrence"
)

// Environment variable names.
const (
	EnvTimezone         = "TASKREC_TIMEZONE"
	EnvLeapDay          = "TASKREC_LEAP_DAY"
	EnvLogLevel         = "TASKREC_LOG_LEVEL"
	EnvCalDAVURL        = "TASKREC_CALDAV_URL"
	EnvCalDAVCollection = "TASKREC_CALDAV_COLLECTION"
	EnvCalDAVUsername   = "TASKREC_CALDAV_USERNAME"
	EnvCalDAVPassword   = "TASKREC_CALDAV_PASSWORD"
)

// Env is the raw environment, one field per variable.
type Env struct {
	Timezone         string `validate:"required"`
	LeapDay          string `validate:"oneof=clamp overflow"`
	LogLevel         string `validate:"oneof=debug info warn error"`
	CalDAVURL        string `validate:"omitempty,url"`
	CalDAVCollection string `validate:"startswith=/"`
	CalDAVUsername   string `validate:"required_with=CalDAVURL"`
	CalDAVPassword   string `validate:"required_with=CalDAVURL"`
}

// Config is the resolved configuration.
type Config struct {
	Location *time.Location
	LeapDay  recurrence.LeapDayPolicy
	LogLevel slog.Level
	// CalDAV is zero when no server is configured.
	CalDAV caldav.Config
}

// Load reads the given .env files (".env" when none are named) into the
// process environment and resolves the result. Missing files are fine.
func Load(logger *slog.Logger, files ...string) (Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no .env file, using process environment")
		} else {
			logger.Warn("error loading .env file, using process environment", "error", err)
		}
	}
	return FromEnv()
}

// ReadEnv collects the raw variables, applying defaults for unset ones.
func ReadEnv() Env {
	return Env{
		Timezone:         getEnv(EnvTimezone, "Local"),
		LeapDay:          strings.ToLower(getEnv(EnvLeapDay, "clamp")),
		LogLevel:         strings.ToLower(getEnv(EnvLogLevel, "info")),
		CalDAVURL:        os.Getenv(EnvCalDAVURL),
		CalDAVCollection: getEnv(EnvCalDAVCollection, "/"),
		CalDAVUsername:   os.Getenv(EnvCalDAVUsername),
		CalDAVPassword:   os.Getenv(EnvCalDAVPassword),
	}
}

// FromEnv validates and resolves the process environment.
func FromEnv() (Config, error) {
	return Resolve(ReadEnv())
}

// Resolve validates env and converts it.
func Resolve(env Env) (Config, error) {
	if err := validator.New().Struct(env); err != nil {
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) && len(valErrs) > 0 {
			fe := valErrs[0]
			return Config{}, fmt.Errorf("invalid %s value %q: failed %s", envName(fe.Field()), fe.Value(), fe.Tag())
		}
		return Config{}, err
	}

	loc, err := time.LoadLocation(env.Timezone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", EnvTimezone, err)
	}
	leap, err := recurrence.ParseLeapDayPolicy(env.LeapDay)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", EnvLeapDay, err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(env.LogLevel)); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", EnvLogLevel, err)
	}

	cfg := Config{
		Location: loc,
		LeapDay:  leap,
		LogLevel: level,
	}
	if env.CalDAVURL != "" {
		cfg.CalDAV = caldav.Config{
			BaseURL:    env.CalDAVURL,
			Collection: env.CalDAVCollection,
			Username:   env.CalDAVUsername,
			Password:   env.CalDAVPassword,
		}
	}
	return cfg, nil
}

// EngineConfig returns the recurrence settings.
func (c Config) EngineConfig() recurrence.EngineConfig {
	return recurrence.EngineConfig{Location: c.Location, LeapDay: c.LeapDay}
}

// CalDAVEnabled reports whether a CalDAV server is configured.
func (c Config) CalDAVEnabled() bool {
	return c.CalDAV.BaseURL != ""
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envName(field string) string {
	switch field {
	case "Timezone":
		return EnvTimezone
	case "LeapDay":
		return EnvLeapDay
	case "LogLevel":
		return EnvLogLevel
	case "CalDAVURL":
		return EnvCalDAVURL
	case "CalDAVCollection":
		return EnvCalDAVCollection
	case "CalDAVUsername":
		return EnvCalDAVUsername
	case "CalDAVPassword":
		return EnvCalDAVPassword
	default:
		return field
	}
}
