package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/jsonref"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// Store is the part of the local store the sync engine works with.
type Store interface {
	storage.RecordStorage
	storage.ReconciliationStorage
	storage.MetadataStorage
}

// Reconciler turns an acknowledged create into local state in two phases.
//
// Phase 1 (Begin) persists the reconciliation and only then removes the
// create from the queue. Phase 2 (Apply) moves the record to the server id,
// rewrites queued operations and payload references, publishes id-changed
// and finally drops the reconciliation. Apply can be repeated any number of
// times with the same result.
type Reconciler struct {
	queue  queue.Queue
	store  Store
	events *bus.Bus[bus.Event]
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a reconciler; events may be nil
func NewReconciler(q queue.Queue, store Store, events *bus.Bus[bus.Event], logger *slog.Logger) *Reconciler {
	return &Reconciler{
		queue:  q,
		store:  store,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Begin is phase 1 for the create op acknowledged with res.
func (r *Reconciler) Begin(ctx context.Context, op *models.Operation, res *api.Resource) (*models.Reconciliation, error) {
	rec := &models.Reconciliation{
		EntityType:  op.EntityType,
		TempID:      op.EntityID,
		ServerID:    res.ID,
		OperationID: op.ID,
		CreatedAt:   r.now().UTC(),
		Canonical: &models.Record{
			EntityType: op.EntityType,
			ID:         res.ID,
			Payload:    res.Data,
			UpdatedAt:  res.UpdatedAt,
		},
	}

	if err := r.store.SaveReconciliation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save reconciliation: %w", err)
	}

	err := r.queue.Remove(ctx, op.ID)
	switch {
	case errors.Is(err, storage.ErrOperationNotFound):
		// create отменили, пока запрос был в полете
		rec.Cancelled = true
		if err := r.store.SaveReconciliation(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to save reconciliation: %w", err)
		}
		r.logger.InfoContext(ctx, "Entity deleted while its create was in flight",
			"entity_type", rec.EntityType,
			"temp_id", rec.TempID,
			"server_id", rec.ServerID)
	case err != nil:
		return nil, fmt.Errorf("failed to remove acknowledged create: %w", err)
	}

	return rec, nil
}

// Apply is phase 2. It returns nil once nothing local refers to the
// temporary id any more.
func (r *Reconciler) Apply(ctx context.Context, rec *models.Reconciliation) error {
	// create мог остаться в очереди, если процесс упал между фазами;
	// сервер его уже подтвердил, повторно он не отправляется
	if err := r.queue.Remove(ctx, rec.OperationID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return fmt.Errorf("failed to remove acknowledged create: %w", err)
	}

	if rec.Cancelled {
		if err := r.applyCancelled(ctx, rec); err != nil {
			return err
		}
	} else {
		if err := r.moveRecord(ctx, rec); err != nil {
			return err
		}
		if _, err := r.queue.RewriteEntityID(ctx, rec.EntityType, rec.TempID, rec.ServerID); err != nil {
			return fmt.Errorf("failed to rewrite queued operations: %w", err)
		}
	}

	if _, err := r.queue.RewriteReferences(ctx, rec.TempID, rec.ServerID); err != nil {
		return fmt.Errorf("failed to rewrite queued references: %w", err)
	}
	if err := r.rewriteRecordReferences(ctx, rec.TempID, rec.ServerID); err != nil {
		return err
	}

	publish(r.events, bus.Event{
		At:         r.now(),
		Kind:       bus.EventIDChanged,
		EntityType: rec.EntityType,
		EntityID:   rec.ServerID,
		OldID:      rec.TempID,
		NewID:      rec.ServerID,
	})

	if err := r.store.DeleteReconciliation(ctx, rec.EntityType, rec.TempID); err != nil {
		return fmt.Errorf("failed to delete reconciliation: %w", err)
	}

	r.logger.InfoContext(ctx, "Reconciled temporary id",
		"entity_type", rec.EntityType,
		"temp_id", rec.TempID,
		"server_id", rec.ServerID,
		"cancelled", rec.Cancelled)
	return nil
}

// moveRecord stores the entity under its server id.
// With later operations still queued the optimistic local state wins over
// the server response, otherwise the server response is canonical.
func (r *Reconciler) moveRecord(ctx context.Context, rec *models.Reconciliation) error {
	local, err := r.store.GetRecord(ctx, rec.EntityType, rec.TempID)
	if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("failed to load local record: %w", err)
	}

	if local == nil {
		// Повторный запуск: запись уже перенесена
		_, err := r.store.GetRecord(ctx, rec.EntityType, rec.ServerID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrRecordNotFound) {
			return fmt.Errorf("failed to load server record: %w", err)
		}
	}

	target := rec.Canonical.Clone()
	if target == nil || len(target.Payload) == 0 {
		target = localUnderServerID(local, rec)
	}

	if local != nil {
		pending, err := r.hasPending(ctx, rec)
		if err != nil {
			return err
		}
		if pending {
			target = localUnderServerID(local, rec)
		}
	}

	if target == nil {
		return nil
	}
	if err := r.store.ReplaceRecordID(ctx, rec.EntityType, rec.TempID, target); err != nil {
		return fmt.Errorf("failed to replace record id: %w", err)
	}
	return nil
}

func localUnderServerID(local *models.Record, rec *models.Reconciliation) *models.Record {
	if local == nil {
		return nil
	}
	moved := local.Clone()
	moved.ID = rec.ServerID
	return moved
}

func (r *Reconciler) hasPending(ctx context.Context, rec *models.Reconciliation) (bool, error) {
	for _, id := range []string{rec.TempID, rec.ServerID} {
		ops, err := r.queue.Pending(ctx, rec.EntityType, id)
		if err != nil {
			return false, fmt.Errorf("failed to list pending operations: %w", err)
		}
		if len(ops) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// applyCancelled removes the entity locally and deletes it on the server.
func (r *Reconciler) applyCancelled(ctx context.Context, rec *models.Reconciliation) error {
	for _, id := range []string{rec.TempID, rec.ServerID} {
		if err := r.store.RemoveRecord(ctx, rec.EntityType, id); err != nil {
			return fmt.Errorf("failed to remove cancelled record: %w", err)
		}
	}

	// операции, поставленные после отмены, больше не нужны
	if _, err := r.queue.Cancel(ctx, rec.EntityType, rec.TempID); err != nil {
		return err
	}

	pending, err := r.queue.Pending(ctx, rec.EntityType, rec.ServerID)
	if err != nil {
		return fmt.Errorf("failed to list pending operations: %w", err)
	}
	for _, op := range pending {
		if op.Type == models.OperationDelete {
			return nil
		}
	}

	del := &models.Operation{
		Type:       models.OperationDelete,
		EntityType: rec.EntityType,
		EntityID:   rec.ServerID,
	}
	if err := r.queue.Enqueue(ctx, del); err != nil {
		return fmt.Errorf("failed to queue delete of cancelled entity: %w", err)
	}
	return nil
}

// rewriteRecordReferences replaces references to tempID in every local record.
func (r *Reconciler) rewriteRecordReferences(ctx context.Context, tempID, serverID string) error {
	types, err := r.store.EntityTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entity types: %w", err)
	}

	for _, entityType := range types {
		records, err := r.store.GetAllRecords(ctx, entityType)
		if err != nil {
			return fmt.Errorf("failed to load %s records: %w", entityType, err)
		}
		for _, record := range records {
			payload, changed, err := jsonref.Replace(record.Payload, tempID, serverID)
			if err != nil || !changed {
				continue
			}
			record.Payload = payload
			if err := r.store.PutRecord(ctx, record); err != nil {
				return fmt.Errorf("failed to rewrite references in %s/%s: %w", entityType, record.ID, err)
			}
		}
	}
	return nil
}

func publish(events *bus.Bus[bus.Event], ev bus.Event) {
	if events != nil {
		events.Publish(ev)
	}
}
