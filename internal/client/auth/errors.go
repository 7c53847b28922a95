package auth

import "errors"

var (
	// ErrNotAuthenticated: no session is stored
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrAccessExpired: the access token expired and has not been refreshed yet
	ErrAccessExpired = errors.New("access token expired")

	// ErrRefreshExpired: the refresh token expired, only a new login helps
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrRefreshRejected: the server refused the refresh token
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// NeedsLogin reports whether err can only be resolved by a new login.
func NeedsLogin(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrRefreshExpired) ||
		errors.Is(err, ErrRefreshRejected)
}
