package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/models"
)

func reconciliationKey(entityType, tempID string) []byte {
	return []byte(entityType + "/" + tempID)
}

// SaveReconciliation stores or replaces a pending reconciliation
func (s *Storage) SaveReconciliation(ctx context.Context, rec *models.Reconciliation) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal reconciliation: %w", err)
	}

	return s.update("save reconciliation", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReconciliations)
		if bucket == nil {
			return bucketNotFound(bucketReconciliations)
		}
		return bucket.Put(reconciliationKey(rec.EntityType, rec.TempID), data)
	})
}

// ListReconciliations returns pending reconciliations ordered by key
func (s *Storage) ListReconciliations(ctx context.Context) ([]*models.Reconciliation, error) {
	var result []*models.Reconciliation
	err := s.view("list reconciliations", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReconciliations)
		if bucket == nil {
			return bucketNotFound(bucketReconciliations)
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec := &models.Reconciliation{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("failed to unmarshal reconciliation: %w", err)
			}
			result = append(result, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteReconciliation removes a reconciliation, missing ones are ignored
func (s *Storage) DeleteReconciliation(ctx context.Context, entityType, tempID string) error {
	return s.update("delete reconciliation", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketReconciliations)
		if bucket == nil {
			return bucketNotFound(bucketReconciliations)
		}
		return bucket.Delete(reconciliationKey(entityType, tempID))
	})
}
