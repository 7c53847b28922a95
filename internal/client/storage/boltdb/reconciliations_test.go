package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/models"
)

func TestReconciliations(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	list, err := store.ListReconciliations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	rec := &models.Reconciliation{
		EntityType:  models.EntityOrders,
		TempID:      "tmp-1",
		ServerID:    "42",
		OperationID: "op-1",
		Canonical:   newRecord(models.EntityOrders, "42", `{"total":1}`),
	}
	require.NoError(t, store.SaveReconciliation(ctx, rec))
	// повторное сохранение перезаписывает
	require.NoError(t, store.SaveReconciliation(ctx, rec))

	list, err = store.ListReconciliations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "42", list[0].ServerID)
	assert.Equal(t, "42", list[0].Canonical.ID)

	require.NoError(t, store.DeleteReconciliation(ctx, models.EntityOrders, "tmp-1"))
	require.NoError(t, store.DeleteReconciliation(ctx, models.EntityOrders, "tmp-1"))

	list, err = store.ListReconciliations(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
