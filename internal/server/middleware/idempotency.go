package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/server/handlers"
	"github.com/iudanet/offsync/internal/server/storage"
	"github.com/iudanet/offsync/pkg/api"
)

// ReplayedHeader помечает ответ, восстановленный по Idempotency-Key
const ReplayedHeader = "Idempotent-Replayed"

// maxIdempotencyKeyLength ограничивает длину ключа
const maxIdempotencyKeyLength = 255

// recorded is the outcome of one handler execution
type recorded struct {
	header http.Header
	body   []byte
	status int
}

// Idempotency создает middleware, который выполняет мутирующий запрос
// с заголовком Idempotency-Key не более одного раза на пользователя.
// Повтор получает сохраненный ответ. Ответы 5xx не запоминаются,
// такой запрос можно повторить. Должен стоять после AuthMiddleware.
func Idempotency(logger *slog.Logger, store storage.IdempotencyStorage) func(http.Handler) http.Handler {
	var group singleflight.Group

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(api.IdempotencyKeyHeader))
			userID, authenticated := handlers.GetUserID(r.Context())
			if key == "" || !authenticated || !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				writeError(w, "idempotency key is too long", http.StatusBadRequest)
				return
			}

			ctx := r.Context()
			cached, err := store.GetIdempotentResponse(ctx, userID, key)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to load idempotent response", "error", err)
				writeError(w, "idempotency lookup failed", http.StatusInternalServerError)
				return
			}
			if cached != nil {
				logger.DebugContext(ctx, "Replaying idempotent response",
					"user_id", userID,
					"key", key,
					"status", cached.StatusCode)
				copyResponse(w, fromStored(cached))
				return
			}

			// одновременные запросы с одним ключом ждут первого
			v, err, _ := group.Do(userID+"\x00"+key, func() (any, error) {
				// ключ мог сохраниться, пока ждали очереди
				cached, err := store.GetIdempotentResponse(ctx, userID, key)
				if err != nil {
					return nil, err
				}
				if cached != nil {
					return fromStored(cached), nil
				}

				rec := httptest.NewRecorder()
				next.ServeHTTP(rec, r)
				res := &recorded{
					header: rec.Header().Clone(),
					body:   bytes.Clone(rec.Body.Bytes()),
					status: rec.Code,
				}

				if res.status < http.StatusInternalServerError {
					entry := &models.IdempotentResponse{
						OwnerID:     userID,
						Key:         key,
						StatusCode:  res.status,
						ContentType: res.header.Get("Content-Type"),
						Body:        res.body,
						CreatedAt:   time.Now(),
					}
					// сохраняем даже если клиент уже отключился
					saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					if err := store.SaveIdempotentResponse(saveCtx, entry); err != nil {
						logger.ErrorContext(ctx, "Failed to save idempotent response",
							"key", key,
							"error", err)
					}
				}
				return res, nil
			})
			if err != nil {
				logger.ErrorContext(ctx, "Idempotent execution failed", "error", err)
				writeError(w, "idempotency lookup failed", http.StatusInternalServerError)
				return
			}

			res := v.(*recorded)
			copyResponse(w, res)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func fromStored(entry *models.IdempotentResponse) *recorded {
	header := make(http.Header)
	if entry.ContentType != "" {
		header.Set("Content-Type", entry.ContentType)
	}
	header.Set(ReplayedHeader, "true")
	return &recorded{header: header, body: entry.Body, status: entry.StatusCode}
}

func copyResponse(w http.ResponseWriter, res *recorded) {
	for key, values := range res.header {
		w.Header().Del(key)
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	status := res.status
	if status <= 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(res.body)
}
