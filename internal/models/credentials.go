package models

import "time"

// Credentials is the current session of the local user.
type Credentials struct {
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Username         string    `json:"username"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
}

// AccessValid reports whether the access token is usable at now.
func (c *Credentials) AccessValid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.AccessExpiresAt)
}

// RefreshValid reports whether the refresh token is usable at now.
// A zero RefreshExpiresAt means the server did not announce an expiry.
func (c *Credentials) RefreshValid(now time.Time) bool {
	if c == nil || c.RefreshToken == "" {
		return false
	}
	return c.RefreshExpiresAt.IsZero() || now.Before(c.RefreshExpiresAt)
}

// AccessExpiresWithin reports whether the access token expires within d of now.
func (c *Credentials) AccessExpiresWithin(now time.Time, d time.Duration) bool {
	if c == nil {
		return true
	}
	return !now.Add(d).Before(c.AccessExpiresAt)
}
