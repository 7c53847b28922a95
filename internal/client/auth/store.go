package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/crypto"
	"github.com/iudanet/offsync/internal/models"
)

const metaStoreSalt = "store_salt"

// CredentialStore provides encryption layer between the session and storage.
// It encrypts tokens before saving and decrypts them when retrieving.
// Without a sealer tokens are stored as-is.
type CredentialStore struct {
	storage storage.AuthStorage
	sealer  *crypto.Sealer
}

// NewCredentialStore creates a credential store; sealer may be nil
func NewCredentialStore(st storage.AuthStorage, sealer *crypto.Sealer) *CredentialStore {
	return &CredentialStore{
		storage: st,
		sealer:  sealer,
	}
}

// OpenSealer derives the token encryption key from secret and the salt kept
// in metadata, creating the salt on first use. An empty secret disables
// encryption and returns nil.
func OpenSealer(ctx context.Context, meta storage.MetadataStorage, secret string) (*crypto.Sealer, error) {
	if secret == "" {
		return nil, nil
	}

	salt, err := meta.GetMeta(ctx, metaStoreSalt)
	if err != nil {
		return nil, fmt.Errorf("failed to load store salt: %w", err)
	}
	if salt == nil {
		// Первый запуск: генерируем соль и сохраняем рядом с данными
		if salt, err = crypto.GenerateSalt(); err != nil {
			return nil, err
		}
		if err := meta.SetMeta(ctx, metaStoreSalt, salt); err != nil {
			return nil, fmt.Errorf("failed to save store salt: %w", err)
		}
	}

	key, err := crypto.DeriveStoreKey(secret, salt)
	if err != nil {
		return nil, fmt.Errorf("failed to derive store key: %w", err)
	}
	return crypto.NewSealer(key)
}

// Save шифрует токены и сохраняет сессию
func (s *CredentialStore) Save(ctx context.Context, creds *models.Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are nil")
	}

	data := &storage.AuthData{
		Username:         creds.Username,
		AccessToken:      creds.AccessToken,
		RefreshToken:     creds.RefreshToken,
		AccessExpiresAt:  unixOrZero(creds.AccessExpiresAt),
		RefreshExpiresAt: unixOrZero(creds.RefreshExpiresAt),
	}

	if s.sealer != nil {
		var err error
		// Поле токена служит associated data, токены нельзя поменять местами
		if data.AccessToken, err = s.sealer.SealString(creds.AccessToken, "access_token"); err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}
		if data.RefreshToken, err = s.sealer.SealString(creds.RefreshToken, "refresh_token"); err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		data.Encrypted = true
	}

	return s.storage.SaveAuth(ctx, data)
}

// Load загружает сессию из storage и расшифровывает токены.
// Returns ErrNotAuthenticated if nothing is stored.
func (s *CredentialStore) Load(ctx context.Context) (*models.Credentials, error) {
	data, err := s.storage.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	creds := &models.Credentials{
		Username:         data.Username,
		AccessToken:      data.AccessToken,
		RefreshToken:     data.RefreshToken,
		AccessExpiresAt:  timeOrZero(data.AccessExpiresAt),
		RefreshExpiresAt: timeOrZero(data.RefreshExpiresAt),
	}

	if data.Encrypted {
		if s.sealer == nil {
			return nil, fmt.Errorf("credentials are encrypted but no store secret is configured")
		}
		if creds.AccessToken, err = s.sealer.OpenString(data.AccessToken, "access_token"); err != nil {
			return nil, fmt.Errorf("failed to decrypt access token: %w", err)
		}
		if creds.RefreshToken, err = s.sealer.OpenString(data.RefreshToken, "refresh_token"); err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}

	return creds, nil
}

// Delete удаляет сессию; отсутствие сессии не ошибка
func (s *CredentialStore) Delete(ctx context.Context) error {
	if err := s.storage.DeleteAuth(ctx); err != nil && !errors.Is(err, storage.ErrAuthNotFound) {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
