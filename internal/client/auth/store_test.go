package auth

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
)

func newTestBolt(t *testing.T) *boltdb.Storage {
	t.Helper()
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleCredentials() *models.Credentials {
	return &models.Credentials{
		Username:         "alice",
		AccessToken:      "access-token",
		RefreshToken:     "refresh-token",
		AccessExpiresAt:  time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		RefreshExpiresAt: time.Date(2026, 6, 8, 12, 0, 0, 0, time.UTC),
	}
}

func TestCredentialStore_Plaintext(t *testing.T) {
	ctx := context.Background()
	bolt := newTestBolt(t)
	store := NewCredentialStore(bolt, nil)

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, store.Save(ctx, sampleCredentials()))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleCredentials(), got)

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCredentialStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	bolt := newTestBolt(t)

	sealer, err := OpenSealer(ctx, bolt, "device-secret")
	require.NoError(t, err)
	require.NotNil(t, sealer)

	store := NewCredentialStore(bolt, sealer)
	require.NoError(t, store.Save(ctx, sampleCredentials()))

	// В хранилище лежит шифротекст
	raw, err := bolt.GetAuth(ctx)
	require.NoError(t, err)
	assert.True(t, raw.Encrypted)
	assert.NotEqual(t, "access-token", raw.AccessToken)
	assert.NotEqual(t, "refresh-token", raw.RefreshToken)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleCredentials(), got)

	// Тот же секрет и сохраненная соль дают тот же ключ
	again, err := OpenSealer(ctx, bolt, "device-secret")
	require.NoError(t, err)
	got, err = NewCredentialStore(bolt, again).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", got.RefreshToken)

	// Другой секрет не расшифровывает
	wrong, err := OpenSealer(ctx, bolt, "other-secret")
	require.NoError(t, err)
	_, err = NewCredentialStore(bolt, wrong).Load(ctx)
	assert.Error(t, err)

	// Без секрета зашифрованную сессию прочитать нельзя
	_, err = NewCredentialStore(bolt, nil).Load(ctx)
	assert.Error(t, err)
}

func TestOpenSealer_EmptySecret(t *testing.T) {
	sealer, err := OpenSealer(context.Background(), newTestBolt(t), "")
	require.NoError(t, err)
	assert.Nil(t, sealer)
}
