// Package caldav publishes tasks as VTODO objects into a CalDAV collection.
package caldav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cyp0633/libtaskrec/calendar"
	"github.com/cyp0633/libtaskrec/internal/clock"
	"github.com/cyp0633/libtaskrec/internal/httpclient"
	"github.com/cyp0633/libtaskrec/model"
)

// ErrMissingCredentials is returned when no basic auth credentials are given.
var ErrMissingCredentials = errors.New("caldav username and password are required")

var _ calendar.Publisher = (*Publisher)(nil)

// Config describes the target collection.
type Config struct {
	// BaseURL of the CalDAV server, e.g. https://dav.example.com
	BaseURL string
	// Collection path relative to BaseURL, e.g. /u/alice/cal/tasks/
	Collection string
	Username   string
	Password   string
}

// Publisher implements calendar.Publisher over CalDAV PUT and DELETE, with a
// PROPFIND to learn the ETag of objects it has not written itself.
type Publisher struct {
	client     httpclient.HttpClientWrapper
	collection string
	clock      clock.Clock
	loc        *time.Location
	logger     *slog.Logger

	mu    sync.Mutex
	etags map[string]string // href -> last ETag seen
}

type options struct {
	transport http.RoundTripper
	clock     clock.Clock
	loc       *time.Location
	logger    *slog.Logger
}

// Option configures a Publisher.
type Option func(*options)

// WithTransport sets the transport underneath basic auth.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.transport = rt
	}
}

// WithClock sets the clock used for DTSTAMP.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLocation sets the zone used to read date-only deadlines.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.loc = loc
	}
}

// WithLogger sets the logger for the publisher and its HTTP client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Publisher for cfg.
func New(cfg Config, opts ...Option) (*Publisher, error) {
	o := options{
		clock:  clock.RealClock{},
		loc:    time.Local,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", cfg.BaseURL)
	}

	transport := httpclient.NewBasicAuthTransport(cfg.Username, cfg.Password, o.transport, o.logger)
	client, err := httpclient.NewHttpClientWrapper(&http.Client{Transport: transport}, *base, o.logger)
	if err != nil {
		return nil, err
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "/"
	}
	if !strings.HasPrefix(collection, "/") {
		collection = "/" + collection
	}

	return &Publisher{
		client:     client,
		collection: collection,
		clock:      o.clock,
		loc:        o.loc,
		logger:     o.logger,
		etags:      make(map[string]string),
	}, nil
}

func (p *Publisher) objectHref(taskID string) string {
	return path.Join(p.collection, url.PathEscape(taskID)+".ics")
}

// Publish PUTs the task and returns the object href as the event ID.
// The last known ETag is sent as If-Match. When this Publisher has not seen
// the object yet its ETag is read from the server first.
func (p *Publisher) Publish(ctx context.Context, task model.Task) (string, error) {
	body, err := calendar.EncodeTask(task, p.clock.Now(), p.loc)
	if err != nil {
		return "", err
	}

	href := p.objectHref(task.ID)

	p.mu.Lock()
	etag, known := p.etags[href]
	p.mu.Unlock()

	if !known {
		// Another process may have published or edited this object.
		etag, err = p.client.DoGetETag(ctx, href)
		if err != nil {
			return "", fmt.Errorf("failed to look up %s: %w", href, err)
		}
	}

	newEtag, err := p.client.DoPUT(ctx, href, etag, body)
	if err != nil {
		return "", fmt.Errorf("failed to publish task %s: %w", task.ID, err)
	}

	p.mu.Lock()
	if newEtag != "" {
		p.etags[href] = newEtag
	} else {
		delete(p.etags, href)
	}
	p.mu.Unlock()

	p.logger.Info("task published", "task_id", task.ID, "href", href)
	return href, nil
}

// Remove deletes a published object. An object that is already gone counts
// as removed.
func (p *Publisher) Remove(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}

	p.mu.Lock()
	etag := p.etags[eventID]
	p.mu.Unlock()

	err := p.client.DoDELETE(ctx, eventID, etag)
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		p.logger.Debug("object already removed", "href", eventID)
		err = nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", eventID, err)
	}

	p.mu.Lock()
	delete(p.etags, eventID)
	p.mu.Unlock()

	p.logger.Info("task removed", "href", eventID)
	return nil
}
