package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/offsync/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	SendError(logger, w, api.ErrorResponse{Message: message}, statusCode)
}

// SendError writes resp with the status text as the error code when unset
func SendError(logger *slog.Logger, w http.ResponseWriter, resp api.ErrorResponse, statusCode int) {
	if resp.Error == "" {
		resp.Error = http.StatusText(statusCode)
	}
	sendJSON(logger, w, resp, statusCode)
}
