package storage

import "context"

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// SaveLastSyncTimestamp saves the timestamp of the last successful drain
	SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error

	// GetLastSyncTimestamp retrieves the timestamp of the last successful drain
	// Returns 0 if no drain has completed yet
	GetLastSyncTimestamp(ctx context.Context) (int64, error)

	// GetMeta returns a raw metadata value, nil if absent
	GetMeta(ctx context.Context, key string) ([]byte, error)

	// SetMeta stores a raw metadata value
	SetMeta(ctx context.Context, key string, value []byte) error
}
