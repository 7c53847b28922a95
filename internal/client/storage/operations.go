package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

// OperationStorage is the durable log behind the sync queue.
type OperationStorage interface {
	// AppendOperation assigns op.Seq and stores the operation at the tail
	AppendOperation(ctx context.Context, op *models.Operation) error

	// ListOperations returns all operations ordered by Seq
	ListOperations(ctx context.Context) ([]*models.Operation, error)

	// GetOperation returns ErrOperationNotFound if the operation doesn't exist
	GetOperation(ctx context.Context, id string) (*models.Operation, error)

	// ModifyOperation loads the operation, applies fn and stores the result
	// in one transaction, keeping its position. Returns ErrOperationNotFound
	// if the operation doesn't exist.
	ModifyOperation(ctx context.Context, id string, fn func(op *models.Operation)) error

	// UpdateOperations applies fn to every operation in one transaction and
	// stores those for which fn returns true
	UpdateOperations(ctx context.Context, fn func(op *models.Operation) bool) (int, error)

	// DeleteOperation returns ErrOperationNotFound if the operation doesn't exist
	DeleteOperation(ctx context.Context, id string) error

	// DeleteOperations removes every operation matching fn in one transaction
	DeleteOperations(ctx context.Context, fn func(op *models.Operation) bool) ([]*models.Operation, error)
}
