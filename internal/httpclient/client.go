package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
)

// HttpClientWrapper is the subset of CalDAV object calls used to publish tasks.
type HttpClientWrapper interface {
	DoPUT(ctx context.Context, url string, etag string, data []byte) (newEtag string, err error)
	DoDELETE(ctx context.Context, url string, etag string) error
	DoGetETag(ctx context.Context, url string) (string, error)
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Method     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d", e.Method, e.StatusCode)
}

type httpClientWrapper struct {
	client  *http.Client
	baseURL url.URL
	logger  *slog.Logger
}

// NewHttpClientWrapper resolves object paths against baseURL. A nil client
// means http.DefaultClient.
func NewHttpClientWrapper(client *http.Client, baseURL url.URL, logger *slog.Logger) (HttpClientWrapper, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &httpClientWrapper{client: client, baseURL: baseURL, logger: logger}, nil
}

func (c *httpClientWrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// send performs one request. Any status outside ok closes the body and
// yields a *StatusError.
func (c *httpClientWrapper) send(ctx context.Context, method, urlStr, etag string, header http.Header, body io.Reader, ok ...int) (*http.Response, error) {
	target, err := c.resolveURL(urlStr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}

	c.logger.Debug("sending request",
		"method", method,
		"url", target.String(),
		"etag", etag)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", method, err)
	}

	c.logger.Debug("received response",
		"method", method,
		"status", resp.Status,
		"etag", resp.Header.Get("ETag"))

	if !slices.Contains(ok, resp.StatusCode) {
		resp.Body.Close()
		return nil, &StatusError{Method: method, StatusCode: resp.StatusCode}
	}
	return resp, nil
}
