package httpclient

import (
	"bytes"
	"context"
	"net/http"
)

// DoPUT uploads an iCalendar body and returns the ETag the server assigned.
// A non-empty etag is sent as If-Match so a concurrent edit on the server
// makes the upload fail with 412 instead of being overwritten.
func (c *httpClientWrapper) DoPUT(ctx context.Context, urlStr string, etag string, data []byte) (newEtag string, err error) {
	header := http.Header{}
	header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.send(ctx, http.MethodPut, urlStr, etag, header, bytes.NewReader(data),
		http.StatusOK, http.StatusCreated, http.StatusNoContent)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	return resp.Header.Get("ETag"), nil
}
