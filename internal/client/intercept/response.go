package intercept

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/iudanet/offsync/internal/models"
)

const offlineHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body>
<h1>You are offline</h1>
<p>This page is not available offline yet. Changes you make keep being saved and will be sent once the connection is back.</p>
</body>
</html>
`

func newResponse(req *http.Request, status int, contentType string, body []byte) *http.Response {
	resp := &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		ContentLength: int64(len(body)),
		Request:       req,
	}
	if contentType != "" {
		resp.Header.Set("Content-Type", contentType)
	}
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))

	if req.Method == http.MethodHead {
		resp.Body = http.NoBody
	} else {
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}
	return resp
}

func jsonResponse(req *http.Request, status int, v any) *http.Response {
	body, err := json.Marshal(v)
	if err != nil {
		body = []byte(`{"error":"internal"}`)
	}
	return newResponse(req, status, "application/json", body)
}

// cachedResponse rebuilds a response from a cache entry
func cachedResponse(req *http.Request, cached *models.CachedResponse) *http.Response {
	resp := newResponse(req, cached.StatusCode, cached.ContentType, cached.Body)
	for k, v := range cached.Header {
		resp.Header.Set(k, v)
	}
	return resp
}

func offlinePage(req *http.Request) *http.Response {
	return newResponse(req, http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(offlineHTML))
}
