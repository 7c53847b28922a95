package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/crypto"
	"github.com/iudanet/offsync/internal/server/storage"
	"github.com/iudanet/offsync/internal/server/storage/sqlite"
	"github.com/iudanet/offsync/pkg/api"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *sqlite.Storage) {
	t.Helper()
	s := setupTestStorage(t)
	return NewAuthHandler(setupTestLogger(), s, s, testJWTConfig()), s
}

func registerUser(t *testing.T, h *AuthHandler, username, password string) string {
	t.Helper()
	w := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register",
		api.RegisterRequest{Username: username, Password: password})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[api.RegisterResponse](t, w).UserID
}

func loginUser(t *testing.T, h *AuthHandler, username, password string) api.TokenResponse {
	t.Helper()
	w := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login",
		api.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[api.TokenResponse](t, w)
}

func TestAuthHandler_Register(t *testing.T) {
	h, s := setupAuthHandler(t)
	userID := registerUser(t, h, "alice", "password123")
	assert.NotEmpty(t, userID)

	user, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, crypto.VerifyPassword("password123", user.PasswordHash, user.PasswordSalt))
}

func TestAuthHandler_RegisterErrors(t *testing.T) {
	h, _ := setupAuthHandler(t)
	registerUser(t, h, "alice", "password123")

	tests := []struct {
		body   any
		name   string
		fields []string
		code   int
	}{
		{name: "invalid json", body: "{", code: http.StatusBadRequest},
		{
			name:   "short password",
			body:   api.RegisterRequest{Username: "bob", Password: "short"},
			code:   http.StatusBadRequest,
			fields: []string{"password"},
		},
		{
			name:   "bad username and password",
			body:   api.RegisterRequest{Username: "a b", Password: ""},
			code:   http.StatusBadRequest,
			fields: []string{"username", "password"},
		},
		{
			name: "duplicate username",
			body: api.RegisterRequest{Username: "alice", Password: "password456"},
			code: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h.Register, http.MethodPost, "/api/v1/auth/register", tt.body)
			assert.Equal(t, tt.code, w.Code)

			resp := decode[api.ErrorResponse](t, w)
			assert.Equal(t, http.StatusText(tt.code), resp.Error)
			for _, f := range tt.fields {
				assert.Contains(t, resp.Fields, f)
			}
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	h, _ := setupAuthHandler(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	h.SetClock(func() time.Time { return now })
	registerUser(t, h, "alice", "password123")

	tokens := loginUser(t, h, "alice", "password123")
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, now.Add(15*time.Minute).Unix(), tokens.AccessExpiresAt)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), tokens.RefreshExpiresAt)
}

func TestAuthHandler_LoginErrors(t *testing.T) {
	h, _ := setupAuthHandler(t)
	registerUser(t, h, "alice", "password123")

	tests := []struct {
		body any
		name string
		code int
	}{
		{name: "invalid json", body: "not json", code: http.StatusBadRequest},
		{name: "missing password", body: api.LoginRequest{Username: "alice"}, code: http.StatusBadRequest},
		{name: "unknown user", body: api.LoginRequest{Username: "bob", Password: "password123"}, code: http.StatusUnauthorized},
		{name: "wrong password", body: api.LoginRequest{Username: "alice", Password: "password124"}, code: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h.Login, http.MethodPost, "/api/v1/auth/login", tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	h, _ := setupAuthHandler(t)
	userID := registerUser(t, h, "alice", "password123")
	first := loginUser(t, h, "alice", "password123")

	w := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(first.RefreshToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[api.TokenResponse](t, w)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	claims, err := ValidateAccessToken(testJWTConfig(), second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	// старый токен одноразовый
	w = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(first.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(second.RefreshToken))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_RefreshExpired(t *testing.T) {
	h, s := setupAuthHandler(t)
	start := time.Now()
	h.SetClock(func() time.Time { return start })
	registerUser(t, h, "alice", "password123")
	tokens := loginUser(t, h, "alice", "password123")

	h.SetClock(func() time.Time { return start.Add(25 * time.Hour) })
	w := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(tokens.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")

	// истекший токен удаляется
	_, err := s.GetRefreshToken(context.Background(), crypto.HashToken(tokens.RefreshToken))
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)
}

func TestAuthHandler_RefreshMissingToken(t *testing.T) {
	h, _ := setupAuthHandler(t)

	w := doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer("unknown"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	h, _ := setupAuthHandler(t)
	registerUser(t, h, "alice", "password123")
	laptop := loginUser(t, h, "alice", "password123")
	phone := loginUser(t, h, "alice", "password123")

	w := doJSON(t, h.Logout, http.MethodPost, "/api/v1/auth/logout", nil, withBearer(laptop.RefreshToken))
	assert.Equal(t, http.StatusNoContent, w.Code)

	// повторный logout тоже успешен
	w = doJSON(t, h.Logout, http.MethodPost, "/api/v1/auth/logout", nil, withBearer(laptop.RefreshToken))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(laptop.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// другие сессии не затронуты
	w = doJSON(t, h.Refresh, http.MethodPost, "/api/v1/auth/refresh", nil, withBearer(phone.RefreshToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h.Logout, http.MethodPost, "/api/v1/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc ", want: "abc", ok: true},
		{header: "Bearer ", ok: false},
		{header: "Basic abc", ok: false},
		{header: "abc", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.header, " ", "_"), func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	token, expiresAt, err := GenerateAccessToken(cfg, "user-1", "alice", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(cfg.AccessTokenTTL), expiresAt)

	claims, err := ValidateAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, Issuer, claims.Issuer)

	expired, _, err := GenerateAccessToken(cfg, "user-1", "alice", now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = ValidateAccessToken(cfg, expired)
	assert.Error(t, err)
}
