package queue

import (
	"context"
	"fmt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// TempKnown reports whether tempID still leads somewhere: its create is
// queued, or the create was acknowledged and the reconciliation has not
// rewritten the id yet. Anything else is a stale or made-up id.
func TempKnown(ctx context.Context, q Queue, recs storage.ReconciliationStorage, entityType, tempID string) (bool, error) {
	pending, err := q.Pending(ctx, entityType, tempID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending operations: %w", err)
	}
	for _, op := range pending {
		if op.Type == models.OperationCreate {
			return true, nil
		}
	}

	rec, err := findReconciliation(ctx, recs, entityType, tempID)
	if err != nil {
		return false, err
	}
	return rec != nil && !rec.Cancelled, nil
}

// CancelTemp drops every queued operation of a temporary entity. If its
// create was already acknowledged, the reconciliation is marked cancelled
// and turns into a server-side delete on the next pass.
func CancelTemp(ctx context.Context, q Queue, recs storage.ReconciliationStorage, entityType, tempID string) ([]*models.Operation, *models.Reconciliation, error) {
	cancelled, err := q.Cancel(ctx, entityType, tempID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to cancel %s/%s: %w", entityType, tempID, err)
	}

	rec, err := findReconciliation(ctx, recs, entityType, tempID)
	if err != nil || rec == nil || rec.Cancelled {
		return cancelled, nil, err
	}

	rec.Cancelled = true
	if err := recs.SaveReconciliation(ctx, rec); err != nil {
		return cancelled, nil, fmt.Errorf("failed to cancel reconciliation of %s: %w", tempID, err)
	}
	return cancelled, rec, nil
}

func findReconciliation(ctx context.Context, recs storage.ReconciliationStorage, entityType, tempID string) (*models.Reconciliation, error) {
	all, err := recs.ListReconciliations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reconciliations: %w", err)
	}
	for _, rec := range all {
		if rec.EntityType == entityType && rec.TempID == tempID {
			return rec, nil
		}
	}
	return nil, nil
}
