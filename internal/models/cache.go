package models

import "time"

// CachedResponse is a stored HTTP response owned by the interception layer.
type CachedResponse struct {
	StoredAt    time.Time         `json:"stored_at"`
	Header      map[string]string `json:"header,omitempty"`
	RequestKey  string            `json:"request_key"` // METHOD + " " + URL
	ContentType string            `json:"content_type"`
	Generation  string            `json:"generation"` // поколение кэша (версия сборки)
	Body        []byte            `json:"body"`
	StatusCode  int               `json:"status_code"`
}
