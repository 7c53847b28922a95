package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// GetCachedResponse retrieves a cached response by request key
func (s *Storage) GetCachedResponse(ctx context.Context, key string) (*models.CachedResponse, error) {
	var resp *models.CachedResponse
	err := s.view("get cached response", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCachedResponses)
		if bucket == nil {
			return bucketNotFound(bucketCachedResponses)
		}

		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrCacheMiss
		}

		resp = &models.CachedResponse{}
		if err := json.Unmarshal(data, resp); err != nil {
			return fmt.Errorf("failed to unmarshal cached response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// PutCachedResponse stores a response under its request key
func (s *Storage) PutCachedResponse(ctx context.Context, resp *models.CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal cached response: %w", err)
	}

	return s.update("put cached response", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCachedResponses)
		if bucket == nil {
			return bucketNotFound(bucketCachedResponses)
		}
		return bucket.Put([]byte(resp.RequestKey), data)
	})
}

// PruneCachedResponses deletes entries written by other cache generations
func (s *Storage) PruneCachedResponses(ctx context.Context, keep string) (int, error) {
	pruned := 0
	err := s.update("prune cached responses", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketCachedResponses)
		if bucket == nil {
			return bucketNotFound(bucketCachedResponses)
		}

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var entry struct {
				Generation string `json:"generation"`
			}
			// Битые записи тоже удаляем
			if err := json.Unmarshal(v, &entry); err != nil || entry.Generation != keep {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return fmt.Errorf("failed to delete cached response: %w", err)
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return pruned, nil
}
