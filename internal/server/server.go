// Package server wires the dev collaborator API: an HTTP server that
// implements the REST contract the sync engine replays operations against.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/offsync/internal/server/handlers"
	"github.com/iudanet/offsync/internal/server/middleware"
	"github.com/iudanet/offsync/internal/server/storage"
)

// Storage is everything the dev API persists
type Storage interface {
	storage.UserStorage
	storage.TokenStorage
	storage.ResourceStorage
	storage.IdempotencyStorage
	handlers.Pinger
}

// Config настройки dev API
type Config struct {
	Addr            string
	DBPath          string
	Secret          string
	EntityTypes     []string // пусто = любой допустимый тип
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IdempotencyTTL  time.Duration
	CleanupInterval time.Duration
	AuthRateWindow  time.Duration
	AuthRateLimit   int
}

// DefaultConfig возвращает настройки для локальной разработки
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8080",
		DBPath:          "devapi.db",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		IdempotencyTTL:  24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
		AuthRateLimit:   20,
		AuthRateWindow:  time.Minute,
	}
}

// Validate проверяет настройки, возвращает все ошибки разом
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr cannot be empty"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db path cannot be empty"))
	}
	if len(c.Secret) < 16 {
		errs = append(errs, errors.New("secret must be at least 16 characters"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		errs = append(errs, errors.New("access token TTL must be shorter than refresh token TTL"))
	}
	if c.IdempotencyTTL <= 0 || c.CleanupInterval <= 0 {
		errs = append(errs, errors.New("idempotency TTL and cleanup interval must be positive"))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("auth rate limit and window must be positive"))
	}
	return errors.Join(errs...)
}

// Server dev API
type Server struct {
	store   Storage
	logger  *slog.Logger
	limiter *middleware.RateLimiter
	handler http.Handler
	cfg     Config
}

// New собирает маршруты. Close останавливает фоновые задачи.
func New(cfg Config, store Storage, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		limiter: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, logger),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler with every middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	jwtConfig := handlers.JWTConfig{
		Secret:          []byte(s.cfg.Secret),
		AccessTokenTTL:  s.cfg.AccessTokenTTL,
		RefreshTokenTTL: s.cfg.RefreshTokenTTL,
	}

	authHandler := handlers.NewAuthHandler(s.logger, s.store, s.store, jwtConfig)
	resourceHandler := handlers.NewResourceHandler(s.logger, s.store, s.cfg.EntityTypes)
	healthHandler := handlers.NewHealthHandler(s.logger, s.store)

	rateLimit := middleware.RateLimit(s.limiter)
	protect := func(h http.HandlerFunc) http.Handler {
		// Auth снаружи: Idempotency нужен user_id
		return middleware.AuthMiddleware(s.logger, jwtConfig)(
			middleware.Idempotency(s.logger, s.store)(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	mux.Handle("POST /api/v1/auth/register", rateLimit(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /api/v1/auth/login", rateLimit(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)

	mux.Handle("GET /api/v1/{type}", protect(resourceHandler.List))
	mux.Handle("POST /api/v1/{type}", protect(resourceHandler.Create))
	mux.Handle("GET /api/v1/{type}/{id}", protect(resourceHandler.Get))
	mux.Handle("PUT /api/v1/{type}/{id}", protect(resourceHandler.Update))
	mux.Handle("DELETE /api/v1/{type}/{id}", protect(resourceHandler.Delete))

	var handler http.Handler = mux
	handler = middleware.Logging(s.logger, middleware.LogConfig{
		SkipPaths: []string{"/api/v1/health"},
		ResponseHeaders: map[string]string{
			middleware.ReplayedHeader: "replayed",
		},
	})(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	return handler
}

// Serve обслуживает ln до отмены ctx, затем корректно завершает запросы.
// Параллельно периодически чистит истекшие токены и старые ключи идемпотентности.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.cleanupLoop(gctx)
		return nil
	})

	s.logger.InfoContext(ctx, "Dev API listening", "addr", ln.Addr().String())
	return g.Wait()
}

// Close останавливает rate limiter
func (s *Server) Close() {
	s.limiter.Stop()
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup(ctx, time.Now())
		}
	}
}

// Cleanup removes expired refresh tokens and idempotency keys older than
// the configured TTL. Failures are logged, the next tick retries.
func (s *Server) Cleanup(ctx context.Context, now time.Time) {
	tokens, err := s.store.DeleteExpiredTokens(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to delete expired tokens", "error", err)
	}
	keys, err := s.store.DeleteIdempotentResponses(ctx, now.Add(-s.cfg.IdempotencyTTL))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to delete idempotency keys", "error", err)
	}
	if tokens > 0 || keys > 0 {
		s.logger.DebugContext(ctx, "Cleanup done",
			"expired_tokens", tokens,
			"idempotency_keys", keys)
	}
}
