package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/server/storage"
	"github.com/iudanet/offsync/internal/validation"
	"github.com/iudanet/offsync/pkg/api"
)

// maxPayloadSize ограничивает тело сущности
const maxPayloadSize = 1 << 20

// reservedTypes заняты собственными маршрутами API
var reservedTypes = map[string]struct{}{
	"auth":   {},
	"health": {},
}

// ResourceHandler serves generic CRUD for every entity type
type ResourceHandler struct {
	logger  *slog.Logger
	storage storage.ResourceStorage
	types   map[string]struct{} // nil = любой допустимый тип
	now     func() time.Time
}

// NewResourceHandler creates a resource handler. An empty entityTypes
// accepts every valid type name.
func NewResourceHandler(logger *slog.Logger, st storage.ResourceStorage, entityTypes []string) *ResourceHandler {
	h := &ResourceHandler{
		logger:  logger,
		storage: st,
		now:     time.Now,
	}
	if len(entityTypes) > 0 {
		h.types = make(map[string]struct{}, len(entityTypes))
		for _, t := range entityTypes {
			h.types[t] = struct{}{}
		}
	}
	return h
}

// SetClock replaces the time source, tests only
func (h *ResourceHandler) SetClock(now func() time.Time) {
	h.now = now
}

// Create обрабатывает POST /api/v1/{type}
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, entityType, ok := h.scope(w, r)
	if !ok {
		return
	}
	payload, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	res := &models.Resource{
		ID:         uuid.NewString(),
		EntityType: entityType,
		OwnerID:    userID,
		Data:       payload,
		UpdatedAt:  h.now(),
	}
	if err := h.storage.CreateResource(ctx, res); err != nil {
		h.internalError(w, r, "failed to create resource", err)
		return
	}

	h.logger.InfoContext(ctx, "resource created",
		slog.String("entity_type", entityType),
		slog.String("id", res.ID))
	sendJSON(h.logger, w, toAPI(res), http.StatusCreated)
}

// Update обрабатывает PUT /api/v1/{type}/{id}
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, entityType, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}
	payload, ok := h.readPayload(w, r)
	if !ok {
		return
	}

	res := &models.Resource{
		ID:         id,
		EntityType: entityType,
		OwnerID:    userID,
		Data:       payload,
		UpdatedAt:  h.now(),
	}
	if err := h.storage.UpdateResource(ctx, res); err != nil {
		h.storageError(w, r, err)
		return
	}

	sendJSON(h.logger, w, toAPI(res), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/{type}/{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, entityType, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	if err := h.storage.DeleteResource(ctx, userID, entityType, id, h.now()); err != nil {
		h.storageError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "resource deleted",
		slog.String("entity_type", entityType),
		slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

// Get обрабатывает GET /api/v1/{type}/{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, entityType, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.resourceID(w, r)
	if !ok {
		return
	}

	res, err := h.storage.GetResource(r.Context(), userID, entityType, id)
	if err != nil {
		// Для чтения удаленная сущность просто отсутствует
		if errors.Is(err, storage.ErrResourceDeleted) {
			err = storage.ErrResourceNotFound
		}
		h.storageError(w, r, err)
		return
	}

	sendJSON(h.logger, w, toAPI(res), http.StatusOK)
}

// List обрабатывает GET /api/v1/{type}
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, entityType, ok := h.scope(w, r)
	if !ok {
		return
	}

	resources, err := h.storage.ListResources(r.Context(), userID, entityType)
	if err != nil {
		h.internalError(w, r, "failed to list resources", err)
		return
	}

	list := api.ResourceList{Items: make([]api.Resource, 0, len(resources))}
	for _, res := range resources {
		list.Items = append(list.Items, toAPI(res))
	}
	sendJSON(h.logger, w, list, http.StatusOK)
}

// scope возвращает пользователя из контекста и проверенный тип сущности
func (h *ResourceHandler) scope(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "user ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}

	entityType := r.PathValue("type")
	if err := validation.ValidateEntityType(entityType); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusNotFound)
		return "", "", false
	}
	_, reserved := reservedTypes[entityType]
	_, known := h.types[entityType]
	if reserved || (h.types != nil && !known) {
		sendError(h.logger, w, "unknown entity type "+entityType, http.StatusNotFound)
		return "", "", false
	}
	return userID, entityType, true
}

func (h *ResourceHandler) resourceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if err := validation.ValidateEntityID(id); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// readPayload читает тело и требует JSON объект
func (h *ResourceHandler) readPayload(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(h.logger, w, "payload too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(h.logger, w, "failed to read request body", http.StatusBadRequest)
		return nil, false
	}

	if err := validation.ValidatePayload(body); err != nil {
		SendError(h.logger, w, api.ErrorResponse{
			Message: "validation failed",
			Fields:  map[string]string{"data": err.Error()},
		}, http.StatusBadRequest)
		return nil, false
	}
	return json.RawMessage(body), true
}

func (h *ResourceHandler) storageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrResourceNotFound):
		sendError(h.logger, w, "resource not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrResourceDeleted):
		sendError(h.logger, w, "resource was deleted", http.StatusConflict)
	default:
		h.internalError(w, r, "resource storage failed", err)
	}
}

func (h *ResourceHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg, slog.Any("error", err))
	sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
}

func toAPI(res *models.Resource) api.Resource {
	return api.Resource{
		ID:        res.ID,
		Data:      res.Data,
		UpdatedAt: res.UpdatedAt,
	}
}
