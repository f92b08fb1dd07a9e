package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/beevik/etree"
)

const methodPropfind = "PROPFIND"

// DoGetETag reads the getetag property of a single object with a Depth 0
// PROPFIND. An object the server does not have yields "".
func (c *httpClientWrapper) DoGetETag(ctx context.Context, urlStr string) (string, error) {
	body, err := buildGetETagRequest()
	if err != nil {
		return "", err
	}

	header := http.Header{}
	header.Set("Depth", "0")
	header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := c.send(ctx, methodPropfind, urlStr, "", header, bytes.NewReader(body), http.StatusMultiStatus)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		c.logger.Debug("object not on server", "url", urlStr)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("failed to parse PROPFIND response: %w", err)
	}
	etag := etagFromMultistatus(doc)
	c.logger.Debug("PROPFIND getetag complete", "url", urlStr, "etag", etag)
	return etag, nil
}

func buildGetETagRequest() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	propfind := doc.CreateElement("D:propfind")
	propfind.CreateAttr("xmlns:D", "DAV:")
	propfind.CreateElement("D:prop").CreateElement("D:getetag")

	body, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to build PROPFIND body: %w", err)
	}
	return body, nil
}

// etagFromMultistatus returns the first getetag found in a 200 propstat.
// Element prefixes vary between servers, so only local names are matched.
func etagFromMultistatus(doc *etree.Document) string {
	for _, propstat := range doc.FindElements("//propstat") {
		status := propstat.FindElement("status")
		if status != nil && !strings.Contains(status.Text(), "200") {
			continue
		}
		if etag := propstat.FindElement("prop/getetag"); etag != nil {
			if v := strings.TrimSpace(etag.Text()); v != "" {
				return v
			}
		}
	}
	return ""
}
