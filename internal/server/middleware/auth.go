package middleware

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/offsync/internal/server/handlers"
)

// AuthMiddleware создает middleware для проверки JWT access token
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := handlers.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				logger.WarnContext(r.Context(), "Missing or malformed Authorization header",
					"method", r.Method,
					"path", r.URL.Path)
				writeError(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, tokenString)
			if err != nil {
				logger.WarnContext(r.Context(), "Invalid access token", "error", err)
				writeError(w, "invalid or expired access token", http.StatusUnauthorized)
				return
			}

			logger.DebugContext(r.Context(), "User authenticated",
				"user_id", claims.UserID,
				"username", claims.Username)

			ctx := handlers.WithUser(r.Context(), claims.UserID, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
