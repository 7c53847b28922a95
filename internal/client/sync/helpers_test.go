package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage/boltdb"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeTokens struct {
	err   error
	token string
}

func (f fakeTokens) AccessToken(ctx context.Context) (string, error) {
	return f.token, f.err
}

// fakeServer is an in-memory collaborator API honouring idempotency keys
type fakeServer struct {
	items map[string]json.RawMessage // type/id -> data
	seen  map[string]*api.Resource   // idempotency key -> ответ
	// fail, if set, is consulted before every call
	fail func(method, entityType, id string) error
	mu   sync.Mutex
	next int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		items: make(map[string]json.RawMessage),
		seen:  make(map[string]*api.Resource),
	}
}

func (s *fakeServer) seed(entityType, id, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[entityType+"/"+id] = json.RawMessage(data)
}

func (s *fakeServer) has(entityType, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[entityType+"/"+id]
	return ok
}

func (s *fakeServer) check(method, entityType, id string) error {
	if s.fail == nil {
		return nil
	}
	return s.fail(method, entityType, id)
}

func (s *fakeServer) mock() *RemoteAPIMock {
	return &RemoteAPIMock{
		CreateFunc: func(ctx context.Context, token, entityType string, payload json.RawMessage, key string) (*api.Resource, error) {
			if err := s.check(http.MethodPost, entityType, ""); err != nil {
				return nil, err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if res, ok := s.seen[key]; ok {
				return res, nil
			}
			s.next++
			id := fmt.Sprintf("srv-%d", s.next)
			s.items[entityType+"/"+id] = payload
			res := &api.Resource{ID: id, Data: payload, UpdatedAt: testNow}
			s.seen[key] = res
			return res, nil
		},
		UpdateFunc: func(ctx context.Context, token, entityType, id string, payload json.RawMessage, key string) (*api.Resource, error) {
			if err := s.check(http.MethodPut, entityType, id); err != nil {
				return nil, err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if res, ok := s.seen[key]; ok {
				return res, nil
			}
			if _, ok := s.items[entityType+"/"+id]; !ok {
				return nil, &apiclient.StatusError{StatusCode: http.StatusNotFound}
			}
			s.items[entityType+"/"+id] = payload
			res := &api.Resource{ID: id, Data: payload, UpdatedAt: testNow}
			s.seen[key] = res
			return res, nil
		},
		DeleteFunc: func(ctx context.Context, token, entityType, id, key string) error {
			if err := s.check(http.MethodDelete, entityType, id); err != nil {
				return err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.items[entityType+"/"+id]; !ok {
				return &apiclient.StatusError{StatusCode: http.StatusNotFound}
			}
			delete(s.items, entityType+"/"+id)
			return nil
		},
	}
}

type testEnv struct {
	store  *boltdb.Storage
	queue  *queue.Service
	remote *RemoteAPIMock
	mgr    *Manager
	events <-chan bus.Event
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *boltdb.Storage {
	t.Helper()
	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestEnv(t *testing.T, remote *RemoteAPIMock, cfg Config) *testEnv {
	t.Helper()
	return newTestEnvWithStore(t, newTestStore(t), nil, remote, cfg)
}

// newTestEnvWithStore lets a test decorate the store; wrapped may be nil
func newTestEnvWithStore(t *testing.T, store *boltdb.Storage, wrapped Store, remote *RemoteAPIMock, cfg Config) *testEnv {
	t.Helper()

	q := queue.New(store, discardLogger())
	q.SetClock(func() time.Time { return testNow })

	events := bus.New[bus.Event]()
	ch, unsubscribe := events.Subscribe(256)
	t.Cleanup(unsubscribe)

	var st Store = store
	if wrapped != nil {
		st = wrapped
	}

	mgr := NewManager(q, st, remote, fakeTokens{token: "access"}, events, cfg, discardLogger())
	mgr.SetClock(func() time.Time { return testNow })

	return &testEnv{store: store, queue: q, remote: remote, mgr: mgr, events: ch}
}

func (e *testEnv) enqueue(t *testing.T, typ models.OperationType, entityType, entityID, payload string) *models.Operation {
	t.Helper()
	op := &models.Operation{Type: typ, EntityType: entityType, EntityID: entityID}
	if payload != "" {
		op.Payload = json.RawMessage(payload)
	}
	require.NoError(t, e.queue.Enqueue(context.Background(), op))
	return op
}

func (e *testEnv) putRecord(t *testing.T, entityType, id, payload string) {
	t.Helper()
	require.NoError(t, e.store.PutRecord(context.Background(), &models.Record{
		EntityType: entityType,
		ID:         id,
		Payload:    json.RawMessage(payload),
	}))
}

func (e *testEnv) pending(t *testing.T) []*models.Operation {
	t.Helper()
	ops, err := e.queue.PeekAll(context.Background())
	require.NoError(t, err)
	return ops
}

// drainEvents returns the events published so far
func (e *testEnv) drainEvents() []bus.Event {
	var out []bus.Event
	for {
		select {
		case ev := <-e.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOf(events []bus.Event, kind bus.EventKind) []bus.Event {
	var out []bus.Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
