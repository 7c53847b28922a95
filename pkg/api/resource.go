package api

import (
	"encoding/json"
	"time"
)

// Resource is the canonical server representation of an entity.
// Every successful mutating call returns it, so the caller learns the
// server-assigned id of a freshly created entity.
type Resource struct {
	UpdatedAt time.Time       `json:"updated_at"` // время последнего изменения на сервере
	ID        string          `json:"id"`         // идентификатор, назначенный сервером
	Data      json.RawMessage `json:"data"`       // полное представление сущности
}

// ResourceList is returned by the collection endpoint.
type ResourceList struct {
	Items []Resource `json:"items"`
}

// HealthResponse представляет ответ health-check эндпоинта
type HealthResponse struct {
	Status string `json:"status"`
}

// PendingSyncResponse is the synthetic body returned by the interception
// proxy when a mutating request was queued instead of delivered.
//
// Deleting an entity that was never synced cancels its queued operations
// instead; the body then has status "cancelled" and no operation id.
type PendingSyncResponse struct {
	Status        string `json:"status"`                 // pending_sync или cancelled
	OperationID   string `json:"operation_id,omitempty"` // id операции в очереди
	EntityType    string `json:"entity_type"`            // тип сущности
	EntityID      string `json:"entity_id"`              // id сущности (временный для create)
	OperationType string `json:"operation_type"`         // create, update или delete
	Cancelled     int    `json:"cancelled,omitempty"`    // сколько операций отменено
}

// Значения PendingSyncResponse.Status
const (
	StatusPendingSync = "pending_sync"
	StatusCancelled   = "cancelled"
)

// IdempotencyKeyHeader carries the stable client-generated operation id.
const IdempotencyKeyHeader = "Idempotency-Key"
