package httpclient

import (
	"context"
	"net/http"
)

// DoDELETE removes an object, guarded by If-Match when etag is known.
func (c *httpClientWrapper) DoDELETE(ctx context.Context, urlStr string, etag string) error {
	resp, err := c.send(ctx, http.MethodDelete, urlStr, etag, nil, nil,
		http.StatusOK, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
