package storage

import (
	"context"

	"github.com/iudanet/offsync/internal/models"
)

// ReconciliationStorage keeps acknowledged creates whose temporary id is
// still being rewritten.
type ReconciliationStorage interface {
	SaveReconciliation(ctx context.Context, rec *models.Reconciliation) error
	ListReconciliations(ctx context.Context) ([]*models.Reconciliation, error)
	DeleteReconciliation(ctx context.Context, entityType, tempID string) error
}
