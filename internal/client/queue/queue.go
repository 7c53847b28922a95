// Package queue is the durable, ordered log of mutations waiting to be
// replayed to the remote API.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/jsonref"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/validation"
)

//go:generate moq -out queue_mock.go . Queue

// ErrInvalidOperation is returned by Enqueue for malformed operations
var ErrInvalidOperation = errors.New("invalid operation")

// Queue is the sync queue service. It is injected wherever operations are
// produced or consumed; nothing in the engine reaches a global instance.
type Queue interface {
	// Enqueue appends op durably. It never touches the network.
	Enqueue(ctx context.Context, op *models.Operation) error

	// PeekAll returns every pending operation in FIFO order
	PeekAll(ctx context.Context) ([]*models.Operation, error)

	// Remove drops an acknowledged or abandoned operation
	Remove(ctx context.Context, id string) error

	// MarkAttempt records a transient failure of the operation
	MarkAttempt(ctx context.Context, id string, cause error, nextAttemptAt time.Time) error

	// RewriteEntityID points every operation of oldID at newID
	RewriteEntityID(ctx context.Context, entityType, oldID, newID string) (int, error)

	// RewriteReferences rewrites payload references to oldID in every operation
	RewriteReferences(ctx context.Context, oldID, newID string) (int, error)

	// Cancel drops all operations of one entity and returns them
	Cancel(ctx context.Context, entityType, entityID string) ([]*models.Operation, error)

	// Pending returns the operations of one entity in FIFO order
	Pending(ctx context.Context, entityType, entityID string) ([]*models.Operation, error)

	// Len returns the number of pending operations
	Len(ctx context.Context) (int, error)
}

// Service implements Queue on top of the local store.
type Service struct {
	store  storage.OperationStorage
	logger *slog.Logger
	now    func() time.Time
}

var _ Queue = (*Service)(nil)

// New creates a queue service
func New(store storage.OperationStorage, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source, tests only
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Enqueue validates op, fills ID and EnqueuedAt when missing and appends it
func (s *Service) Enqueue(ctx context.Context, op *models.Operation) error {
	if err := validateOperation(op); err != nil {
		return err
	}

	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = s.now().UTC()
	}
	op.Attempts = 0
	op.LastError = ""
	op.NextAttemptAt = time.Time{}

	if err := s.store.AppendOperation(ctx, op); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", op, err)
	}

	s.logger.DebugContext(ctx, "Operation queued",
		"operation_id", op.ID,
		"type", op.Type,
		"entity_type", op.EntityType,
		"entity_id", op.EntityID,
		"seq", op.Seq)
	return nil
}

func validateOperation(op *models.Operation) error {
	if op == nil {
		return fmt.Errorf("%w: nil operation", ErrInvalidOperation)
	}
	if !op.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Type)
	}
	if err := validation.ValidateEntityType(op.EntityType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if err := validation.ValidateEntityID(op.EntityID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	// create всегда ссылается на временный id до сверки
	if op.Type == models.OperationCreate && !models.IsTempID(op.EntityID) {
		return fmt.Errorf("%w: create must target a temporary id, got %q", ErrInvalidOperation, op.EntityID)
	}
	return nil
}

// PeekAll returns pending operations without removing them
func (s *Service) PeekAll(ctx context.Context) ([]*models.Operation, error) {
	ops, err := s.store.ListOperations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// Remove deletes the operation. storage.ErrOperationNotFound is passed through.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.DeleteOperation(ctx, id); err != nil {
		return fmt.Errorf("failed to remove operation %s: %w", id, err)
	}
	return nil
}

// MarkAttempt increments the attempt counter and stores the backoff deadline
func (s *Service) MarkAttempt(ctx context.Context, id string, cause error, nextAttemptAt time.Time) error {
	err := s.store.ModifyOperation(ctx, id, func(op *models.Operation) {
		op.Attempts++
		op.NextAttemptAt = nextAttemptAt.UTC()
		if cause != nil {
			op.LastError = cause.Error()
		}
	})
	if err != nil {
		return fmt.Errorf("failed to mark attempt of %s: %w", id, err)
	}
	return nil
}

// RewriteEntityID is idempotent: once applied nothing references oldID
func (s *Service) RewriteEntityID(ctx context.Context, entityType, oldID, newID string) (int, error) {
	n, err := s.store.UpdateOperations(ctx, func(op *models.Operation) bool {
		if op.EntityType != entityType || op.EntityID != oldID {
			return false
		}
		op.EntityID = newID
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite %s/%s: %w", entityType, oldID, err)
	}
	return n, nil
}

// RewriteReferences replaces JSON string values equal to oldID in payloads.
// Payloads that aren't valid JSON are skipped.
func (s *Service) RewriteReferences(ctx context.Context, oldID, newID string) (int, error) {
	n, err := s.store.UpdateOperations(ctx, func(op *models.Operation) bool {
		payload, changed, err := jsonref.Replace(op.Payload, oldID, newID)
		if err != nil || !changed {
			return false
		}
		op.Payload = payload
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to rewrite references to %s: %w", oldID, err)
	}
	return n, nil
}

// Cancel removes every pending operation of the entity in one transaction
func (s *Service) Cancel(ctx context.Context, entityType, entityID string) ([]*models.Operation, error) {
	ops, err := s.store.DeleteOperations(ctx, func(op *models.Operation) bool {
		return op.EntityType == entityType && op.EntityID == entityID
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel %s/%s: %w", entityType, entityID, err)
	}

	if len(ops) > 0 {
		s.logger.InfoContext(ctx, "Operations cancelled",
			"entity_type", entityType,
			"entity_id", entityID,
			"count", len(ops))
	}
	return ops, nil
}

// Pending returns the operations of one entity
func (s *Service) Pending(ctx context.Context, entityType, entityID string) ([]*models.Operation, error) {
	all, err := s.PeekAll(ctx)
	if err != nil {
		return nil, err
	}

	var ops []*models.Operation
	for _, op := range all {
		if op.EntityType == entityType && op.EntityID == entityID {
			ops = append(ops, op)
		}
	}
	return ops, nil
}

// Len returns the number of pending operations
func (s *Service) Len(ctx context.Context) (int, error) {
	ops, err := s.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}
