package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/validation"
	"github.com/iudanet/offsync/pkg/api"
)

// API is the part of the remote API the session needs
type API interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Service предоставляет функции авторизации и хранит текущую сессию
type Service struct {
	api    API
	store  *CredentialStore
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex // сериализует refresh, refresh token одноразовый
}

// NewService создает новый сервис авторизации
func NewService(a API, store *CredentialStore, logger *slog.Logger) *Service {
	return &Service{
		api:    a,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source, tests only
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Login выполняет аутентификацию пользователя и сохраняет сессию
func (s *Service) Login(ctx context.Context, username, password string) (*models.Credentials, error) {
	// Валидация входных данных
	if err := validation.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("invalid username: %w", err)
	}
	if password == "" {
		return nil, fmt.Errorf("invalid password: password cannot be empty")
	}

	resp, err := s.api.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	creds := credentialsFromResponse(username, resp, s.now())
	if err := s.store.Save(ctx, creds); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.InfoContext(ctx, "Logged in",
		"username", username,
		"access_expires_at", creds.AccessExpiresAt)
	return creds, nil
}

// Refresh exchanges the refresh token for a new token pair.
// ErrRefreshExpired and ErrRefreshRejected mean a new login is required;
// any other error leaves the stored session untouched.
func (s *Service) Refresh(ctx context.Context) (*models.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !creds.RefreshValid(s.now()) {
		return nil, ErrRefreshExpired
	}

	resp, err := s.api.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		return nil, fmt.Errorf("refresh failed: %w", err)
	}

	refreshed := credentialsFromResponse(creds.Username, resp, s.now())
	if refreshed.RefreshToken == "" {
		// Сервер не ротировал refresh token
		refreshed.RefreshToken = creds.RefreshToken
		refreshed.RefreshExpiresAt = creds.RefreshExpiresAt
	}
	if err := s.store.Save(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.DebugContext(ctx, "Session refreshed", "access_expires_at", refreshed.AccessExpiresAt)
	return refreshed, nil
}

// Current returns the stored session or ErrNotAuthenticated
func (s *Service) Current(ctx context.Context) (*models.Credentials, error) {
	return s.store.Load(ctx)
}

// AccessToken returns a currently valid access token
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	creds, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if !creds.AccessValid(s.now()) {
		return "", ErrAccessExpired
	}
	return creds.AccessToken, nil
}

// Logout выполняет выход из системы
// Удаляет локальную сессию и уведомляет сервер (best effort).
// Очередь синхронизации не затрагивается.
func (s *Service) Logout(ctx context.Context) error {
	creds, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		s.logger.DebugContext(ctx, "No session found during logout")
	case err != nil:
		s.logger.WarnContext(ctx, "Failed to load session during logout", "error", err)
	case creds.RefreshToken != "":
		// Не прерываем процесс, если сервер недоступен
		if logoutErr := s.api.Logout(ctx, creds.RefreshToken); logoutErr != nil {
			s.logger.WarnContext(ctx, "Failed to logout on server", "error", logoutErr)
		}
	}

	return s.ForgetSession(ctx)
}

// ForgetSession drops the local session without contacting the server.
// Used when re-authentication is forced.
func (s *Service) ForgetSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Всегда удаляем локальные данные, даже если сервер недоступен
	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete local session: %w", err)
	}
	return nil
}
