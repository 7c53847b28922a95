package data

import "errors"

var (
	// ErrUnavailable is returned when the local store failed and the
	// remote API can't be reached either
	ErrUnavailable = errors.New("local storage unavailable and remote api unreachable")

	// ErrOffline is returned by operations that need the server
	ErrOffline = errors.New("remote api unreachable or session invalid")

	// ErrNotFound means the entity is neither stored locally nor known to the server
	ErrNotFound = errors.New("entity not found")
)
