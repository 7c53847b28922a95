package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

func TestDrain_CreateThenUpdateReconciles(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	env := newTestEnv(t, srv.mock(), Config{})

	tmp := models.NewTempID()
	env.putRecord(t, models.EntityOrders, tmp, `{"total":1}`)
	create := env.enqueue(t, models.OperationCreate, models.EntityOrders, tmp, `{"total":1}`)
	update := env.enqueue(t, models.OperationUpdate, models.EntityOrders, tmp, `{"total":2}`)

	res, err := env.mgr.Drain(ctx, WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
	assert.Equal(t, 1, res.Reconciled)
	assert.Zero(t, res.Remaining)
	assert.Empty(t, env.pending(t))

	creates := env.remote.CreateCalls()
	require.Len(t, creates, 1)
	assert.Equal(t, create.ID, creates[0].IdempotencyKey)
	assert.Equal(t, "access", creates[0].Token)

	// update ушел уже с серверным id
	updates := env.remote.UpdateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, "srv-1", updates[0].ID)
	assert.Equal(t, update.ID, updates[0].IdempotencyKey)

	_, err = env.store.GetRecord(ctx, models.EntityOrders, tmp)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	rec, err := env.store.GetRecord(ctx, models.EntityOrders, "srv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(rec.Payload))

	recs, err := env.store.ListReconciliations(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	changed := eventsOf(env.drainEvents(), bus.EventIDChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, tmp, changed[0].OldID)
	assert.Equal(t, "srv-1", changed[0].NewID)
	assert.Equal(t, models.EntityOrders, changed[0].EntityType)

	assert.Equal(t, StateIdle, env.mgr.State())

	ts, err := env.store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix(), ts)
}

func TestDrain_DeleteRemovesRecord(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		onServer bool
	}{
		{name: "exists on server", onServer: true},
		{name: "already gone counts as success", onServer: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer()
			if tt.onServer {
				srv.seed(models.EntityProducts, "p-1", `{"name":"pen"}`)
			}
			env := newTestEnv(t, srv.mock(), Config{})
			env.putRecord(t, models.EntityProducts, "p-1", `{"name":"pen"}`)
			env.enqueue(t, models.OperationDelete, models.EntityProducts, "p-1", "")

			res, err := env.mgr.Drain(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Synced)
			assert.Empty(t, env.pending(t))
			assert.False(t, srv.has(models.EntityProducts, "p-1"))

			_, err = env.store.GetRecord(ctx, models.EntityProducts, "p-1")
			assert.ErrorIs(t, err, storage.ErrRecordNotFound)
		})
	}
}

func TestDrain_TransientFailureBacksOff(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.fail = func(method, entityType, id string) error {
		return &apiclient.StatusError{StatusCode: http.StatusServiceUnavailable}
	}
	env := newTestEnv(t, srv.mock(), Config{Backoff: BackoffConfig{Base: time.Second, Cap: time.Minute}})

	tmp := models.NewTempID()
	env.enqueue(t, models.OperationCreate, models.EntityClients, tmp, `{"name":"acme"}`)

	res, err := env.mgr.Drain(ctx, WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)
	assert.Equal(t, 1, res.Remaining)

	ops := env.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, 1, ops[0].Attempts)
	assert.True(t, ops[0].NextAttemptAt.Equal(testNow.Add(time.Second)))
	assert.NotEmpty(t, ops[0].LastError)

	// таймер не трогает операцию до истечения backoff
	res, err = env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)
	assert.Len(t, env.remote.CreateCalls(), 1)

	// смена связности игнорирует backoff
	_, err = env.mgr.Drain(ctx, WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Len(t, env.remote.CreateCalls(), 2)

	ops = env.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, 2, ops[0].Attempts)
	assert.True(t, ops[0].NextAttemptAt.Equal(testNow.Add(2*time.Second)))

	// сервер снова доступен
	srv.fail = nil
	_, err = env.mgr.Drain(ctx, WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Empty(t, env.pending(t))
	assert.True(t, srv.has(models.EntityClients, "srv-1"))
}

func TestDrain_TransientErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		name string
	}{
		{name: "network", err: &apiclient.NetworkError{Err: errors.New("connection refused")}},
		{name: "timeout", err: context.DeadlineExceeded},
		{name: "500", err: &apiclient.StatusError{StatusCode: http.StatusInternalServerError}},
		{name: "408", err: &apiclient.StatusError{StatusCode: http.StatusRequestTimeout}},
		{name: "429", err: &apiclient.StatusError{StatusCode: http.StatusTooManyRequests}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer()
			srv.fail = func(string, string, string) error { return tt.err }
			env := newTestEnv(t, srv.mock(), Config{})
			env.enqueue(t, models.OperationUpdate, models.EntityStores, "s-1", `{"open":true}`)

			res, err := env.mgr.Drain(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, res.Retried)

			ops := env.pending(t)
			require.Len(t, ops, 1)
			assert.Equal(t, 1, ops[0].Attempts)
		})
	}
}

func TestDrain_PermanentCreateFailureAbandonsChain(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.fail = func(method, entityType, id string) error {
		return &apiclient.StatusError{StatusCode: http.StatusUnprocessableEntity, Message: "name is required"}
	}
	env := newTestEnv(t, srv.mock(), Config{})

	tmp := models.NewTempID()
	env.putRecord(t, models.EntityAccounts, tmp, `{"balance":0}`)
	create := env.enqueue(t, models.OperationCreate, models.EntityAccounts, tmp, `{"balance":0}`)
	update := env.enqueue(t, models.OperationUpdate, models.EntityAccounts, tmp, `{"balance":5}`)
	del := env.enqueue(t, models.OperationDelete, models.EntityAccounts, tmp, "")

	res, err := env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
	assert.Empty(t, env.pending(t))
	assert.Empty(t, env.remote.UpdateCalls())
	assert.Empty(t, env.remote.DeleteCalls())

	// локальная запись не откатывается
	rec, err := env.store.GetRecord(ctx, models.EntityAccounts, tmp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":0}`, string(rec.Payload))

	failed := eventsOf(env.drainEvents(), bus.EventOperationFailed)
	require.Len(t, failed, 3)
	var failedIDs []string
	for _, ev := range failed {
		failedIDs = append(failedIDs, ev.OperationID)
		var opErr *OperationError
		require.ErrorAs(t, ev.Err, &opErr)
		assert.True(t, opErr.Permanent)
	}
	assert.ElementsMatch(t, []string{create.ID, update.ID, del.ID}, failedIDs)
}

func TestDrain_PermanentUpdateFailureKeepsGoing(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.seed(models.EntityUsers, "u-1", `{"name":"bob"}`)
	srv.fail = func(method, entityType, id string) error {
		if method == http.MethodPut {
			return &apiclient.StatusError{StatusCode: http.StatusBadRequest}
		}
		return nil
	}
	env := newTestEnv(t, srv.mock(), Config{})

	env.putRecord(t, models.EntityUsers, "u-1", `{"name":""}`)
	env.enqueue(t, models.OperationUpdate, models.EntityUsers, "u-1", `{"name":""}`)
	env.enqueue(t, models.OperationDelete, models.EntityUsers, "u-1", "")

	res, err := env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Synced)
	assert.Empty(t, env.pending(t))
	assert.False(t, srv.has(models.EntityUsers, "u-1"))
}

func TestDrain_UnauthorizedStopsPass(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.fail = func(string, string, string) error {
		return &apiclient.StatusError{StatusCode: http.StatusUnauthorized}
	}
	env := newTestEnv(t, srv.mock(), Config{})

	env.enqueue(t, models.OperationCreate, models.EntityOrders, models.NewTempID(), `{}`)
	env.enqueue(t, models.OperationCreate, models.EntityOrders, models.NewTempID(), `{}`)

	_, err := env.mgr.Drain(ctx)
	require.ErrorIs(t, err, ErrUnauthenticated)

	// второй create не отправлялся, ничего не помечено
	assert.Len(t, env.remote.CreateCalls(), 1)
	ops := env.pending(t)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Zero(t, op.Attempts)
	}

	ts, err := env.store.GetLastSyncTimestamp(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts)
}

func TestDrain_NoTokenSkipsNetwork(t *testing.T) {
	srv := newFakeServer()
	env := newTestEnv(t, srv.mock(), Config{})
	env.mgr.tokens = fakeTokens{err: errors.New("access token expired")}

	env.enqueue(t, models.OperationCreate, models.EntityOrders, models.NewTempID(), `{}`)

	_, err := env.mgr.Drain(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Empty(t, env.remote.CreateCalls())
	assert.Len(t, env.pending(t), 1)
}

func TestDrain_FailureIsLocalToEntity(t *testing.T) {
	srv := newFakeServer()
	srv.seed(models.EntityProviders, "bad", `{}`)
	srv.seed(models.EntityProviders, "good", `{}`)
	srv.fail = func(method, entityType, id string) error {
		if id == "bad" {
			return &apiclient.NetworkError{Err: errors.New("reset by peer")}
		}
		return nil
	}
	env := newTestEnv(t, srv.mock(), Config{})

	env.enqueue(t, models.OperationUpdate, models.EntityProviders, "bad", `{"v":1}`)
	env.enqueue(t, models.OperationUpdate, models.EntityProviders, "bad", `{"v":2}`)
	env.enqueue(t, models.OperationUpdate, models.EntityProviders, "good", `{"v":1}`)

	res, err := env.mgr.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synced)
	assert.Equal(t, 1, res.Retried)

	// вторая операция "bad" ждет первую
	ops := env.pending(t)
	require.Len(t, ops, 2)
	assert.Equal(t, "bad", ops[0].EntityID)
	assert.Equal(t, 1, ops[0].Attempts)
	assert.Zero(t, ops[1].Attempts)
}

func TestDrain_UpdateKeepsOptimisticStateWhileOpsPending(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.seed(models.EntityExchangeRates, "usd", `{"rate":1}`)

	var calls atomic.Int32
	srv.fail = func(method, entityType, id string) error {
		if calls.Add(1) == 2 {
			return &apiclient.StatusError{StatusCode: http.StatusBadGateway}
		}
		return nil
	}
	env := newTestEnv(t, srv.mock(), Config{})

	env.putRecord(t, models.EntityExchangeRates, "usd", `{"rate":3}`)
	env.enqueue(t, models.OperationUpdate, models.EntityExchangeRates, "usd", `{"rate":2}`)
	env.enqueue(t, models.OperationUpdate, models.EntityExchangeRates, "usd", `{"rate":3}`)

	_, err := env.mgr.Drain(ctx)
	require.NoError(t, err)

	rec, err := env.store.GetRecord(ctx, models.EntityExchangeRates, "usd")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rate":3}`, string(rec.Payload))

	_, err = env.mgr.Drain(ctx, WithIgnoreBackoff())
	require.NoError(t, err)
	rec, err = env.store.GetRecord(ctx, models.EntityExchangeRates, "usd")
	require.NoError(t, err)
	assert.JSONEq(t, `{"rate":3}`, string(rec.Payload))
	assert.True(t, rec.UpdatedAt.Equal(testNow))
}

func TestDrain_RewritesPayloadReferences(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	env := newTestEnv(t, srv.mock(), Config{})

	client := models.NewTempID()
	order := models.NewTempID()
	env.putRecord(t, models.EntityClients, client, `{"name":"acme"}`)
	env.putRecord(t, models.EntityOrders, order, `{"clientId":"`+client+`"}`)
	env.enqueue(t, models.OperationCreate, models.EntityClients, client, `{"name":"acme"}`)
	env.enqueue(t, models.OperationCreate, models.EntityOrders, order, `{"clientId":"`+client+`","lines":[{"ref":"`+client+`"}]}`)

	_, err := env.mgr.Drain(ctx)
	require.NoError(t, err)

	creates := env.remote.CreateCalls()
	require.Len(t, creates, 2)
	assert.JSONEq(t, `{"clientId":"srv-1","lines":[{"ref":"srv-1"}]}`, string(creates[1].Payload))

	rec, err := env.store.GetRecord(ctx, models.EntityOrders, "srv-2")
	require.NoError(t, err)
	assert.NotContains(t, string(rec.Payload), client)
}

func TestDrain_ReconciliationResumesAfterFailure(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	store := newTestStore(t)
	flaky := &flakyStore{Storage: store}
	flaky.failReplace.Store(true)
	env := newTestEnvWithStore(t, store, flaky, srv.mock(), Config{})

	tmp := models.NewTempID()
	env.putRecord(t, models.EntityOrders, tmp, `{"total":1}`)
	env.enqueue(t, models.OperationCreate, models.EntityOrders, tmp, `{"total":1}`)
	env.enqueue(t, models.OperationUpdate, models.EntityOrders, tmp, `{"total":2}`)

	res, err := env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Remaining)
	assert.Zero(t, res.Reconciled)
	assert.Empty(t, env.remote.UpdateCalls())

	// create подтвержден и удален, сверка сохранена
	ops := env.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationUpdate, ops[0].Type)
	assert.Equal(t, tmp, ops[0].EntityID)

	recs, err := env.store.ListReconciliations(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "srv-1", recs[0].ServerID)

	events := env.drainEvents()
	assert.NotEmpty(t, eventsOf(events, bus.EventStorageDegraded))
	assert.Empty(t, eventsOf(events, bus.EventIDChanged))

	flaky.failReplace.Store(false)
	res, err = env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)
	assert.Equal(t, 1, res.Synced)
	assert.Empty(t, env.pending(t))

	// create не отправлялся повторно
	assert.Len(t, env.remote.CreateCalls(), 1)
	updates := env.remote.UpdateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, "srv-1", updates[0].ID)

	rec, err := env.store.GetRecord(ctx, models.EntityOrders, "srv-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":2}`, string(rec.Payload))
	assert.Len(t, eventsOf(env.drainEvents(), bus.EventIDChanged), 1)
}

func TestDrain_ResumeWithAcknowledgedCreateStillQueued(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	srv.seed(models.EntityOrders, "srv-9", `{"total":1}`)
	env := newTestEnv(t, srv.mock(), Config{})

	tmp := models.NewTempID()
	env.putRecord(t, models.EntityOrders, tmp, `{"total":1}`)
	create := env.enqueue(t, models.OperationCreate, models.EntityOrders, tmp, `{"total":1}`)
	env.enqueue(t, models.OperationUpdate, models.EntityOrders, tmp, `{"total":3}`)

	// сверка сохранена, а create из очереди удалить не успели
	require.NoError(t, env.store.SaveReconciliation(ctx, &models.Reconciliation{
		EntityType:  models.EntityOrders,
		TempID:      tmp,
		ServerID:    "srv-9",
		OperationID: create.ID,
		CreatedAt:   testNow,
		Canonical: &models.Record{
			EntityType: models.EntityOrders,
			ID:         "srv-9",
			Payload:    json.RawMessage(`{"total":1}`),
		},
	}))

	res, err := env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)
	assert.Equal(t, 1, res.Synced)
	assert.Empty(t, env.pending(t))

	assert.Empty(t, env.remote.CreateCalls(), "acknowledged create is not sent again")
	updates := env.remote.UpdateCalls()
	require.Len(t, updates, 1)
	assert.Equal(t, "srv-9", updates[0].ID)

	rec, err := env.store.GetRecord(ctx, models.EntityOrders, "srv-9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3}`, string(rec.Payload))

	recs, err := env.store.ListReconciliations(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDrain_OrphanTempOperationFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, newFakeServer().mock(), Config{})

	stale := models.NewTempID()
	update := env.enqueue(t, models.OperationUpdate, models.EntityOrders, stale, `{"total":5}`)
	del := env.enqueue(t, models.OperationDelete, models.EntityOrders, stale, "")

	res, err := env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
	assert.Zero(t, res.Deferred)
	assert.Empty(t, env.pending(t))
	assert.Empty(t, env.remote.UpdateCalls())
	assert.Empty(t, env.remote.DeleteCalls())

	failed := eventsOf(env.drainEvents(), bus.EventOperationFailed)
	require.Len(t, failed, 2)
	assert.Equal(t, update.ID, failed[0].OperationID)
	assert.Equal(t, del.ID, failed[1].OperationID)
	for _, ev := range failed {
		assert.ErrorIs(t, ev.Err, ErrOrphanOperation)
	}

	// следующий проход ничего не откладывает
	res, err = env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Deferred)
}

func TestDrain_DeletedWhileCreateInFlight(t *testing.T) {
	ctx := context.Background()
	srv := newFakeServer()
	remote := srv.mock()
	env := newTestEnv(t, remote, Config{})

	tmp := models.NewTempID()
	env.putRecord(t, models.EntityStores, tmp, `{"name":"kiosk"}`)
	env.enqueue(t, models.OperationCreate, models.EntityStores, tmp, `{"name":"kiosk"}`)

	create := remote.CreateFunc
	remote.CreateFunc = func(ctx context.Context, token, entityType string, payload json.RawMessage, key string) (*api.Resource, error) {
		// приложение удаляет сущность, пока запрос в полете
		_, err := env.queue.Cancel(ctx, entityType, tmp)
		require.NoError(t, err)
		require.NoError(t, env.store.RemoveRecord(ctx, entityType, tmp))
		return create(ctx, token, entityType, payload, key)
	}

	_, err := env.mgr.Drain(ctx)
	require.NoError(t, err)

	ops := env.pending(t)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationDelete, ops[0].Type)
	assert.Equal(t, "srv-1", ops[0].EntityID)

	_, err = env.store.GetRecord(ctx, models.EntityStores, "srv-1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	_, err = env.mgr.Drain(ctx)
	require.NoError(t, err)
	assert.Empty(t, env.pending(t))
	assert.False(t, srv.has(models.EntityStores, "srv-1"))
}

func TestDrain_ConcurrentTriggerIsCoalesced(t *testing.T) {
	srv := newFakeServer()
	remote := srv.mock()
	env := newTestEnv(t, remote, Config{})
	env.enqueue(t, models.OperationCreate, models.EntityOrders, models.NewTempID(), `{}`)

	started := make(chan struct{})
	release := make(chan struct{})
	create := remote.CreateFunc
	remote.CreateFunc = func(ctx context.Context, token, entityType string, payload json.RawMessage, key string) (*api.Resource, error) {
		close(started)
		<-release
		return create(ctx, token, entityType, payload, key)
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.mgr.Drain(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, env.mgr.Running())
	assert.Equal(t, StateDraining, env.mgr.State())

	_, err := env.mgr.Drain(context.Background(), WithIgnoreBackoff())
	assert.ErrorIs(t, err, ErrDrainInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, env.mgr.Running())
	assert.Len(t, remote.CreateCalls(), 1)
}

func TestDrain_AbortLeavesUnsentOperations(t *testing.T) {
	srv := newFakeServer()
	remote := srv.mock()
	env := newTestEnv(t, remote, Config{})
	env.enqueue(t, models.OperationCreate, models.EntityOrders, models.NewTempID(), `{}`)
	env.enqueue(t, models.OperationCreate, models.EntityProducts, models.NewTempID(), `{}`)

	started := make(chan struct{})
	remote.CreateFunc = func(ctx context.Context, token, entityType string, payload json.RawMessage, key string) (*api.Resource, error) {
		close(started)
		<-ctx.Done()
		return nil, &apiclient.NetworkError{Err: ctx.Err()}
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.mgr.Drain(context.Background())
		done <- err
	}()

	<-started
	env.mgr.Abort()
	require.ErrorIs(t, <-done, ErrAborted)

	ops := env.pending(t)
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Zero(t, op.Attempts)
	}
	assert.Len(t, remote.CreateCalls(), 1)
}

func TestDrain_MaxAttemptsTurnsPermanent(t *testing.T) {
	srv := newFakeServer()
	srv.fail = func(string, string, string) error {
		return &apiclient.NetworkError{Err: errors.New("no route to host")}
	}
	env := newTestEnv(t, srv.mock(), Config{Backoff: BackoffConfig{MaxAttempts: 2}})
	op := env.enqueue(t, models.OperationDelete, models.EntityOrders, "o-1", "")

	res, err := env.mgr.Drain(context.Background(), WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Retried)

	res, err = env.mgr.Drain(context.Background(), WithIgnoreBackoff())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, env.pending(t))

	failed := eventsOf(env.drainEvents(), bus.EventOperationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, op.ID, failed[0].OperationID)
}

func TestDrain_PublishesLifecycleEvents(t *testing.T) {
	env := newTestEnv(t, newFakeServer().mock(), Config{})

	_, err := env.mgr.Drain(context.Background(), WithReason("manual"))
	require.NoError(t, err)

	events := env.drainEvents()
	require.Len(t, events, 2)
	assert.Equal(t, bus.EventDrainStarted, events[0].Kind)
	assert.Equal(t, "manual", events[0].Detail)
	assert.Equal(t, bus.EventDrainFinished, events[1].Kind)
	assert.NoError(t, events[1].Err)
}

func TestGroupByEntity(t *testing.T) {
	op := func(id, entityID string) *models.Operation {
		return &models.Operation{ID: id, EntityType: models.EntityOrders, EntityID: entityID}
	}

	groups := groupByEntity([]*models.Operation{
		op("1", "a"), op("2", "b"), op("3", "a"), op("4", "c"), op("5", "b"),
	})

	var got [][]string
	for _, g := range groups {
		var ids []string
		for _, o := range g {
			ids = append(ids, o.ID)
		}
		got = append(got, ids)
	}
	assert.Equal(t, [][]string{{"1", "3"}, {"2", "5"}, {"4"}}, got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "draining", StateDraining.String())
	assert.Equal(t, "reconciling", StateReconciling.String())
	assert.Equal(t, "retrying", StateRetrying.String())
}

// flakyStore fails ReplaceRecordID on demand
type flakyStore struct {
	*boltdb.Storage
	failReplace atomic.Bool
}

func (s *flakyStore) ReplaceRecordID(ctx context.Context, entityType, oldID string, rec *models.Record) error {
	if s.failReplace.Load() {
		return storage.Unavailable("replace record id", errors.New("disk I/O error"))
	}
	return s.Storage.ReplaceRecordID(ctx, entityType, oldID, rec)
}
