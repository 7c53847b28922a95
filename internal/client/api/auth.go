package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iudanet/offsync/pkg/api"
)

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/register", body: req, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/login", body: req, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Refresh обменивает refresh token на новую пару токенов
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/refresh", bearer: refreshToken, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	return &resp, nil
}

// Logout отзывает refresh token на сервере
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/logout", bearer: refreshToken})
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}

// Ping checks that the remote API is reachable
func (c *Client) Ping(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/health", result: &resp}); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
