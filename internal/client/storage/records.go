package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

// RecordStorage is the table-per-entity part of the local store.
// Every call is atomic and durable once it returns.
type RecordStorage interface {
	// GetRecord returns ErrRecordNotFound if the record doesn't exist
	GetRecord(ctx context.Context, entityType, id string) (*models.Record, error)

	// GetAllRecords returns every record of the entity type
	GetAllRecords(ctx context.Context, entityType string) ([]*models.Record, error)

	// PutRecord inserts or replaces a record
	PutRecord(ctx context.Context, rec *models.Record) error

	// RemoveRecord deletes a record; removing a missing record is not an error
	RemoveRecord(ctx context.Context, entityType, id string) error

	// ReplaceRecordID removes oldID and stores rec under rec.ID in one transaction
	ReplaceRecordID(ctx context.Context, entityType, oldID string, rec *models.Record) error

	// EntityTypes lists the entity tables present in the store
	EntityTypes(ctx context.Context) ([]string, error)
}
