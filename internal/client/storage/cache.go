package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

// CacheStorage stores responses for the interception layer.
type CacheStorage interface {
	// GetCachedResponse returns ErrCacheMiss if nothing is stored under key
	GetCachedResponse(ctx context.Context, key string) (*models.CachedResponse, error)

	PutCachedResponse(ctx context.Context, resp *models.CachedResponse) error

	// PruneCachedResponses removes every entry whose generation differs from keep
	PruneCachedResponses(ctx context.Context, keep string) (int, error)
}
