package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/server/handlers"
	"github.com/iudanet/offsync/pkg/api"
)

// memoryIdempotency хранит ответы в памяти
type memoryIdempotency struct {
	entries map[string]*models.IdempotentResponse
	getErr  error
	mu      sync.Mutex
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{entries: make(map[string]*models.IdempotentResponse)}
}

func (m *memoryIdempotency) GetIdempotentResponse(_ context.Context, ownerID, key string) (*models.IdempotentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[ownerID+"/"+key], nil
}

func (m *memoryIdempotency) SaveIdempotentResponse(_ context.Context, resp *models.IdempotentResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := resp.OwnerID + "/" + resp.Key
	if _, ok := m.entries[k]; !ok {
		m.entries[k] = resp
	}
	return nil
}

func (m *memoryIdempotency) DeleteIdempotentResponses(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, e := range m.entries {
		if e.CreatedAt.Before(before) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *memoryIdempotency) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// countingHandler отвечает 201 и считает выполнения
func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"id":"srv-` + strconv.Itoa(int(n)) + `"}`))
	})
}

func idempotentRequest(method, userID, key string) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/orders", strings.NewReader(`{"total":1}`))
	if key != "" {
		req.Header.Set(api.IdempotencyKeyHeader, key)
	}
	if userID != "" {
		req = req.WithContext(handlers.WithUser(req.Context(), userID, "user-"+userID))
	}
	return req
}

func TestIdempotency_Replay(t *testing.T) {
	store := newMemoryIdempotency()
	var calls atomic.Int32
	handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idempotentRequest(http.MethodPost, "u1", "op-1"))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, idempotentRequest(http.MethodPost, "u1", "op-1"))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))

	assert.EqualValues(t, 1, calls.Load())
}

func TestIdempotency_Passthrough(t *testing.T) {
	tests := []struct {
		name   string
		method string
		userID string
		key    string
	}{
		{name: "no key", method: http.MethodPost, userID: "u1"},
		{name: "read request", method: http.MethodGet, userID: "u1", key: "op-1"},
		{name: "anonymous", method: http.MethodPost, key: "op-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryIdempotency()
			var calls atomic.Int32
			handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusOK))

			for range 2 {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, idempotentRequest(tt.method, tt.userID, tt.key))
				assert.Equal(t, http.StatusOK, w.Code)
			}

			assert.EqualValues(t, 2, calls.Load())
			assert.Zero(t, store.len())
		})
	}
}

func TestIdempotency_ScopedByUser(t *testing.T) {
	store := newMemoryIdempotency()
	var calls atomic.Int32
	handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "u1", "op-1"))
	handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(http.MethodPost, "u2", "op-1"))

	assert.EqualValues(t, 2, calls.Load())
	assert.Equal(t, 2, store.len())
}

func TestIdempotency_ServerErrorNotRemembered(t *testing.T) {
	store := newMemoryIdempotency()
	var calls atomic.Int32
	handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusServiceUnavailable))

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, idempotentRequest(http.MethodPut, "u1", "op-1"))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	}

	assert.EqualValues(t, 2, calls.Load())
	assert.Zero(t, store.len())
}

func TestIdempotency_ClientErrorRemembered(t *testing.T) {
	store := newMemoryIdempotency()
	var calls atomic.Int32
	handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusConflict))

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, idempotentRequest(http.MethodDelete, "u1", "op-1"))
		assert.Equal(t, http.StatusConflict, w.Code)
	}

	assert.EqualValues(t, 1, calls.Load())
}

func TestIdempotency_Concurrent(t *testing.T) {
	store := newMemoryIdempotency()
	var calls atomic.Int32
	release := make(chan struct{})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.WriteHeader(http.StatusCreated)
	})
	handler := Idempotency(setupTestLogger(), store)(next)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, idempotentRequest(http.MethodPost, "u1", "op-1"))
			codes[i] = w.Code
		}()
	}

	// первый запрос должен попасть в обработчик
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for _, code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}
}

func TestIdempotency_Errors(t *testing.T) {
	t.Run("key too long", func(t *testing.T) {
		var calls atomic.Int32
		handler := Idempotency(setupTestLogger(), newMemoryIdempotency())(countingHandler(&calls, http.StatusCreated))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, idempotentRequest(http.MethodPost, "u1", strings.Repeat("k", 256)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Zero(t, calls.Load())
	})

	t.Run("storage failure", func(t *testing.T) {
		store := newMemoryIdempotency()
		store.getErr = errors.New("disk full")
		var calls atomic.Int32
		handler := Idempotency(setupTestLogger(), store)(countingHandler(&calls, http.StatusCreated))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, idempotentRequest(http.MethodPost, "u1", "op-1"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Zero(t, calls.Load())
	})
}
