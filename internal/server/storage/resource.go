package storage

import (
	"context"
	"time"

	"github.com/iudanet/offsync/internal/models"
)

// ResourceStorage keeps the entities of every type, scoped by owner
type ResourceStorage interface {
	// CreateResource inserts a new resource; the caller assigns the id
	CreateResource(ctx context.Context, res *models.Resource) error

	// UpdateResource replaces Data and UpdatedAt.
	// Returns ErrResourceNotFound or ErrResourceDeleted.
	UpdateResource(ctx context.Context, res *models.Resource) error

	// GetResource returns ErrResourceNotFound or ErrResourceDeleted
	GetResource(ctx context.Context, ownerID, entityType, id string) (*models.Resource, error)

	// ListResources returns the live resources of the type ordered by update time
	ListResources(ctx context.Context, ownerID, entityType string) ([]*models.Resource, error)

	// DeleteResource marks the resource deleted (soft delete)
	// Returns ErrResourceNotFound or ErrResourceDeleted.
	DeleteResource(ctx context.Context, ownerID, entityType, id string, at time.Time) error
}

// IdempotencyStorage remembers responses by Idempotency-Key
type IdempotencyStorage interface {
	// GetIdempotentResponse returns nil, nil if the key is unknown
	GetIdempotentResponse(ctx context.Context, ownerID, key string) (*models.IdempotentResponse, error)

	// SaveIdempotentResponse stores the response; an existing key is kept
	SaveIdempotentResponse(ctx context.Context, resp *models.IdempotentResponse) error

	// DeleteIdempotentResponses removes responses created before the given time
	DeleteIdempotentResponses(ctx context.Context, before time.Time) (int, error)
}
