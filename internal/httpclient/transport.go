package httpclient

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// maxLoggedBody caps how much of a body is copied into debug logs.
const maxLoggedBody = 4096

var (
	errEmptyUsername = errors.New("basic auth username cannot be empty")
	errEmptyPassword = errors.New("basic auth password cannot be empty")
)

// BasicAuthTransport adds basic auth credentials to outgoing requests and
// logs request and response bodies at debug level.
type BasicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// NewBasicAuthTransport wraps transport, http.DefaultTransport when nil.
func NewBasicAuthTransport(username, password string, transport http.RoundTripper, logger *slog.Logger) *BasicAuthTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &BasicAuthTransport{
		Username:  username,
		Password:  password,
		Transport: transport,
		Logger:    logger,
	}
}

func (t *BasicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case t.Username == "":
		return nil, errEmptyUsername
	case t.Password == "":
		return nil, errEmptyPassword
	}

	debug := t.Logger.Enabled(req.Context(), slog.LevelDebug)

	// The caller's request must stay untouched.
	out := req.Clone(req.Context())
	if debug {
		var body []byte
		body, out.Body = peekBody(req.Body)
		// Headers are left out: they carry the credentials.
		t.Logger.Debug("outgoing request",
			"method", out.Method,
			"url", out.URL.String(),
			"body_length", len(body),
			"body", truncate(body))
	}
	out.SetBasicAuth(t.Username, t.Password)

	rt := t.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	resp, err := rt.RoundTrip(out)
	if err != nil || !debug {
		return resp, err
	}

	var body []byte
	body, resp.Body = peekBody(resp.Body)
	t.Logger.Debug("incoming response",
		"status", resp.Status,
		"etag", resp.Header.Get("ETag"),
		"body_length", len(body),
		"body", truncate(body))
	return resp, nil
}

// peekBody drains rc and returns its bytes with a fresh reader over them.
// A read error is surfaced by the returned reader.
func peekBody(rc io.ReadCloser) ([]byte, io.ReadCloser) {
	if rc == nil || rc == http.NoBody {
		return nil, rc
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return data, io.NopCloser(io.MultiReader(bytes.NewReader(data), errReader{err}))
	}
	return data, io.NopCloser(bytes.NewReader(data))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func truncate(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "..."
	}
	return string(body)
}
