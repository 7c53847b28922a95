package storage

import (
	"context"
)

// AuthStorage defines interface for storing the session on client
// This is the lowest storage layer - it works with raw data (possibly encrypted tokens)
// and doesn't perform any encryption/decryption itself.
type AuthStorage interface {
	// SaveAuth stores authentication data as-is
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data as-is
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data. The sync queue is not touched.
	DeleteAuth(ctx context.Context) error
}

// AuthData represents authentication information in storage
// IMPORTANT: This struct is used at different layers with different token states:
// - In memory (business logic): tokens are plaintext
// - In storage (BoltDB): tokens are base64 AES-GCM ciphertext when Encrypted is set
// The encryption/decryption happens in auth.CredentialStore.
type AuthData struct {
	Username         string `json:"username"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
	Encrypted        bool   `json:"encrypted"`
}
