package queue

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
)

func newTempEnv(t *testing.T) (*Service, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "temp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func saveReconciliation(t *testing.T, store *boltdb.Storage, tempID, serverID string, cancelled bool) {
	t.Helper()
	require.NoError(t, store.SaveReconciliation(context.Background(), &models.Reconciliation{
		EntityType:  "orders",
		TempID:      tempID,
		ServerID:    serverID,
		OperationID: "op-create",
		Cancelled:   cancelled,
		CreatedAt:   time.Now(),
		Canonical:   &models.Record{EntityType: "orders", ID: serverID, Payload: json.RawMessage(`{}`)},
	}))
}

func TestTempKnown(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(t *testing.T, q *Service, store *boltdb.Storage, tmp string)
		want  bool
	}{
		{
			name:  "nothing refers to it",
			setup: func(t *testing.T, q *Service, store *boltdb.Storage, tmp string) {},
			want:  false,
		},
		{
			name: "create queued",
			setup: func(t *testing.T, q *Service, store *boltdb.Storage, tmp string) {
				require.NoError(t, q.Enqueue(ctx, &models.Operation{Type: models.OperationCreate, EntityType: "orders", EntityID: tmp}))
			},
			want: true,
		},
		{
			name: "only an update queued",
			setup: func(t *testing.T, q *Service, store *boltdb.Storage, tmp string) {
				require.NoError(t, q.Enqueue(ctx, &models.Operation{Type: models.OperationUpdate, EntityType: "orders", EntityID: tmp}))
			},
			want: false,
		},
		{
			name: "reconciliation in progress",
			setup: func(t *testing.T, q *Service, store *boltdb.Storage, tmp string) {
				saveReconciliation(t, store, tmp, "srv-1", false)
			},
			want: true,
		},
		{
			name: "reconciliation cancelled",
			setup: func(t *testing.T, q *Service, store *boltdb.Storage, tmp string) {
				saveReconciliation(t, store, tmp, "srv-1", true)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, store := newTempEnv(t)
			tmp := models.NewTempID()
			tt.setup(t, q, store, tmp)

			known, err := TempKnown(ctx, q, store, "orders", tmp)
			require.NoError(t, err)
			assert.Equal(t, tt.want, known)
		})
	}
}

func TestCancelTemp(t *testing.T) {
	ctx := context.Background()
	q, store := newTempEnv(t)

	tmp := models.NewTempID()
	require.NoError(t, q.Enqueue(ctx, &models.Operation{Type: models.OperationUpdate, EntityType: "orders", EntityID: tmp}))
	require.NoError(t, q.Enqueue(ctx, &models.Operation{Type: models.OperationUpdate, EntityType: "orders", EntityID: "o-2"}))
	saveReconciliation(t, store, tmp, "srv-1", false)

	cancelled, rec, err := CancelTemp(ctx, q, store, "orders", tmp)
	require.NoError(t, err)
	assert.Len(t, cancelled, 1)
	require.NotNil(t, rec)
	assert.Equal(t, "srv-1", rec.ServerID)

	recs, err := store.ListReconciliations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Cancelled)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// повторная отмена ничего не меняет
	cancelled, rec, err = CancelTemp(ctx, q, store, "orders", tmp)
	require.NoError(t, err)
	assert.Empty(t, cancelled)
	assert.Nil(t, rec)
}
