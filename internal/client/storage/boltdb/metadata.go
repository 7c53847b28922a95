package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	keyLastSyncTimestamp = "last_sync_timestamp"
)

// SaveLastSyncTimestamp saves the timestamp of the last successful drain
func (s *Storage) SaveLastSyncTimestamp(ctx context.Context, timestamp int64) error {
	// Конвертируем int64 в bytes
	timestampBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timestampBytes, uint64(timestamp))

	if err := s.SetMeta(ctx, keyLastSyncTimestamp, timestampBytes); err != nil {
		return fmt.Errorf("failed to save last sync timestamp: %w", err)
	}
	return nil
}

// GetLastSyncTimestamp retrieves the timestamp of the last successful drain
// Returns 0 if no drain has completed yet
func (s *Storage) GetLastSyncTimestamp(ctx context.Context) (int64, error) {
	timestampBytes, err := s.GetMeta(ctx, keyLastSyncTimestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to get last sync timestamp: %w", err)
	}
	if len(timestampBytes) != 8 {
		return 0, nil
	}

	return int64(binary.BigEndian.Uint64(timestampBytes)), nil
}

// GetMeta returns a copy of the value stored under key, nil if absent
func (s *Storage) GetMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.view("get metadata", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}
		// Значение валидно только внутри транзакции, копируем
		if v := bucket.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// SetMeta stores value under key
func (s *Storage) SetMeta(ctx context.Context, key string, value []byte) error {
	return s.update("set metadata", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return bucketNotFound(bucketMetadata)
		}
		return bucket.Put([]byte(key), value)
	})
}
