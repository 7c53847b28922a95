package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// GetRecord retrieves a record from the entity table
func (s *Storage) GetRecord(ctx context.Context, entityType, id string) (*models.Record, error) {
	if err := checkEntityType(entityType); err != nil {
		return nil, err
	}

	var rec *models.Record
	err := s.view("get record", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entityType))
		if bucket == nil {
			return storage.ErrRecordNotFound
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		rec = &models.Record{}
		if err := json.Unmarshal(data, rec); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetAllRecords returns every record of the entity type ordered by id
func (s *Storage) GetAllRecords(ctx context.Context, entityType string) ([]*models.Record, error) {
	if err := checkEntityType(entityType); err != nil {
		return nil, err
	}

	var records []*models.Record
	err := s.view("get all records", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entityType))
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			rec := &models.Record{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// PutRecord inserts or replaces a record
func (s *Storage) PutRecord(ctx context.Context, rec *models.Record) error {
	if err := checkEntityType(rec.EntityType); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	// Сериализуем запись в JSON
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.update("put record", func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(rec.EntityType))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		if err := bucket.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	})
}

// RemoveRecord deletes a record, missing records are ignored
func (s *Storage) RemoveRecord(ctx context.Context, entityType, id string) error {
	if err := checkEntityType(entityType); err != nil {
		return err
	}

	return s.update("remove record", func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(entityType))
		if bucket == nil {
			return nil
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil
	})
}

// ReplaceRecordID moves a record from oldID to rec.ID atomically.
// Applying it twice has the same effect as applying it once.
func (s *Storage) ReplaceRecordID(ctx context.Context, entityType, oldID string, rec *models.Record) error {
	if err := checkEntityType(entityType); err != nil {
		return err
	}
	if rec.EntityType != entityType {
		return fmt.Errorf("record entity type %q does not match %q", rec.EntityType, entityType)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.update("replace record id", func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(entityType))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		if oldID != rec.ID {
			if err := bucket.Delete([]byte(oldID)); err != nil {
				return fmt.Errorf("failed to delete old record: %w", err)
			}
		}
		if err := bucket.Put([]byte(rec.ID), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
		return nil
	})
}

// EntityTypes lists the entity tables in the database
func (s *Storage) EntityTypes(ctx context.Context) ([]string, error) {
	var types []string
	err := s.view("list entity types", func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if _, ok := reserved[string(name)]; !ok {
				types = append(types, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(types)
	return types, nil
}
