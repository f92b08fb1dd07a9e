package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyp0633/libtaskrec/config"
	"github.com/cyp0633/libtaskrec/internal/clock"
)

var cliNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvTimezone, "UTC")
	t.Setenv(config.EnvLeapDay, "clamp")
	t.Setenv(config.EnvLogLevel, "error")
	for _, key := range []string{
		config.EnvCalDAVURL, config.EnvCalDAVCollection,
		config.EnvCalDAVUsername, config.EnvCalDAVPassword,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeTask(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(args, &out, io.Discard, clock.NewFakeClock(cliNow))
	return out.String(), err
}

const dailyTask = `{"id":"t1","title":"Stand-up","deadline":"2024-01-01T12:00:00.000Z","priority":"normal",` +
	`"isCompleted":true,"isRecurring":true,"recurrencePattern":"daily","notificationId":"n1"}`

func TestNext(t *testing.T) {
	setupEnv(t)
	file := writeTask(t, dailyTask)

	out, err := runCLI(t, "next", "--file", file)
	require.NoError(t, err)

	assert.Contains(t, out, `"deadline": "2024-01-02T12:00:00.000Z"`)
	assert.Contains(t, out, `"isCompleted": false`)
	assert.Contains(t, out, `"createdAt": "2024-01-01T09:00:00.000Z"`)
	assert.NotContains(t, out, `"id": "t1"`)
	assert.NotContains(t, out, "notificationId")
}

func TestNextCount(t *testing.T) {
	setupEnv(t)
	file := writeTask(t, `{"id":"t2","title":"Gym","deadline":"2024-01-01T18:00:00Z",`+
		`"isRecurring":true,"recurrencePattern":"weekly","recurrenceDetails":{"days":[1,3]}}`)

	out, err := runCLI(t, "next", "-f", file, "-n", "3")
	require.NoError(t, err)

	// 2024-01-01 is a Monday.
	assert.Equal(t, []string{
		"2024-01-03T18:00:00.000Z",
		"2024-01-08T18:00:00.000Z",
		"2024-01-10T18:00:00.000Z",
	}, strings.Fields(out))
}

func TestNextNoSuccessor(t *testing.T) {
	setupEnv(t)
	file := writeTask(t, `{"id":"t3","title":"Once","isRecurring":false}`)

	out, err := runCLI(t, "next", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "no successor\n", out)

	out, err = runCLI(t, "next", "--file", file, "--count", "2")
	require.NoError(t, err)
	assert.Equal(t, "no upcoming deadlines\n", out)
}

func TestLeadAndEstimate(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "lead critical soon", args: []string{"lead", "-p", "critical", "-d", "2024-01-01T10:00:00Z"}, want: "15"},
		{name: "lead without deadline", args: []string{"lead"}, want: "30"},
		{name: "lead overdue", args: []string{"lead", "-p", "low", "-d", "2023-12-31T10:00:00Z"}, want: "15"},
		{name: "estimate low", args: []string{"estimate", "--priority", "low"}, want: "8"},
		{name: "estimate close deadline", args: []string{"estimate", "-d", "2024-01-01T11:00:00Z"}, want: "1.8"},
		{name: "estimate overdue", args: []string{"estimate", "-d", "2024-01-01T08:00:00Z"}, want: "0.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestLeadRejectsUnknownPriority(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "lead", "--priority", "urgent")
	assert.Error(t, err)
}

func TestIcs(t *testing.T) {
	setupEnv(t)
	file := writeTask(t, dailyTask)

	out, err := runCLI(t, "ics", "--file", file)
	require.NoError(t, err)

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "BEGIN:VTODO")
	assert.Contains(t, out, "UID:t1")
	assert.Contains(t, out, "SUMMARY:Stand-up")
	assert.Contains(t, out, "RRULE:FREQ=DAILY")
}

func TestPublishRequiresServer(t *testing.T) {
	setupEnv(t)
	file := writeTask(t, dailyTask)

	_, err := runCLI(t, "publish", "--file", file)
	assert.ErrorIs(t, err, errNoCalDAV)
}

func TestPublish(t *testing.T) {
	setupEnv(t)

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PROPFIND" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.Header().Set("ETag", `"1"`)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	t.Setenv(config.EnvCalDAVURL, srv.URL)
	t.Setenv(config.EnvCalDAVCollection, "/cal/tasks/")
	t.Setenv(config.EnvCalDAVUsername, "alice")
	t.Setenv(config.EnvCalDAVPassword, "secret")

	file := writeTask(t, dailyTask)
	out, err := runCLI(t, "publish", "--file", file)
	require.NoError(t, err)
	assert.Equal(t, "/cal/tasks/t1.ics", strings.TrimSpace(out))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/cal/tasks/t1.ics", path)
	assert.Contains(t, body, "BEGIN:VTODO")
}
