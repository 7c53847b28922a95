package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// DefaultAccessTTL is assumed when neither the response nor the token
// announce an expiry.
const DefaultAccessTTL = 5 * time.Minute

// credentialsFromResponse converts a token response into a session.
func credentialsFromResponse(username string, resp *api.TokenResponse, now time.Time) *models.Credentials {
	creds := &models.Credentials{
		Username:     username,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	switch {
	case resp.AccessExpiresAt > 0:
		creds.AccessExpiresAt = time.Unix(resp.AccessExpiresAt, 0).UTC()
	default:
		if exp, ok := tokenExpiry(resp.AccessToken); ok {
			creds.AccessExpiresAt = exp
		} else {
			creds.AccessExpiresAt = now.Add(DefaultAccessTTL).UTC()
		}
	}

	if resp.RefreshExpiresAt > 0 {
		creds.RefreshExpiresAt = time.Unix(resp.RefreshExpiresAt, 0).UTC()
	}
	return creds
}

// tokenExpiry reads the exp claim of a JWT without verifying the signature.
// The client can't verify it and only uses exp to schedule the refresh.
func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time.UTC(), true
}
