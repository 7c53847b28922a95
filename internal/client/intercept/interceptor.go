// Package intercept sits between the application and the network. It serves
// reads from a response cache when the network fails and turns failed
// mutations into queued operations.
package intercept

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

// Headers set on intercepted responses
const (
	StrategyHeader = "X-Offsync-Strategy"
	CacheHeader    = "X-Offsync-Cache"
)

// Значения X-Offsync-Cache
const (
	CacheStale = "stale"
	CacheHit   = "hit"
)

// DefaultRevalidateTimeout bounds a background revalidation
const DefaultRevalidateTimeout = 30 * time.Second

// maxBodySize limits bodies buffered for queueing and caching
const maxBodySize = 10 << 20

// cachedHeaders are the response headers kept in the cache
var cachedHeaders = []string{"Cache-Control", "ETag", "Last-Modified", "Content-Language"}

// Config of the interceptor
type Config struct {
	Classifier        ClassifierConfig
	CacheGeneration   string
	RevalidateTimeout time.Duration
}

// Store is the part of the local store the interceptor mirrors queued
// mutations into
type Store interface {
	storage.RecordStorage
	storage.ReconciliationStorage
}

// Interceptor is an http.RoundTripper applying the caching and queueing
// strategies on top of next.
type Interceptor struct {
	next       http.RoundTripper
	classifier *Classifier
	queue      queue.Queue
	store      Store
	cache      storage.CacheStorage
	messages   *bus.Bus[bus.Message]
	logger     *slog.Logger
	now        func() time.Time
	group      singleflight.Group
	wg         sync.WaitGroup
	generation string
	revalidate time.Duration
}

var _ http.RoundTripper = (*Interceptor)(nil)

// New creates an interceptor. messages may be nil.
func New(
	next http.RoundTripper,
	q queue.Queue,
	store Store,
	cache storage.CacheStorage,
	messages *bus.Bus[bus.Message],
	cfg Config,
	logger *slog.Logger,
) *Interceptor {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = DefaultRevalidateTimeout
	}
	return &Interceptor{
		next:       next,
		classifier: NewClassifier(cfg.Classifier),
		queue:      q,
		store:      store,
		cache:      cache,
		messages:   messages,
		logger:     logger,
		now:        time.Now,
		generation: cfg.CacheGeneration,
		revalidate: cfg.RevalidateTimeout,
	}
}

// Start prunes cached responses of other generations
func (i *Interceptor) Start(ctx context.Context) error {
	n, err := i.cache.PruneCachedResponses(ctx, i.generation)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	if n > 0 {
		i.logger.InfoContext(ctx, "Pruned cached responses", "count", n, "generation", i.generation)
	}
	return nil
}

// Wait blocks until background revalidations have finished
func (i *Interceptor) Wait() {
	i.wg.Wait()
}

// RoundTrip implements http.RoundTripper
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	route := i.classifier.Classify(req)

	var (
		resp *http.Response
		err  error
	)
	switch route.Strategy {
	case StrategyQueueOnFailure:
		resp, err = i.queueOnFailure(req, route)
	case StrategyNetworkFirst:
		resp, err = i.networkFirst(req)
	case StrategyCacheFirst:
		resp, err = i.cacheFirst(req)
	case StrategyStaleWhileRevalidate:
		resp, err = i.staleWhileRevalidate(req)
	default:
		return i.next.RoundTrip(req)
	}
	if err != nil {
		return nil, err
	}
	resp.Header.Set(StrategyHeader, string(route.Strategy))
	return resp, nil
}

// queueOnFailure tries the network and queues the mutation if it fails.
// 4xx responses are the server's answer and are returned as is. A mutation
// goes straight to the queue while older operations of the same entity are
// queued, and mutations of temporary ids never reach the network.
func (i *Interceptor) queueOnFailure(req *http.Request, route Route) (*http.Response, error) {
	body, err := readBody(req)
	if err != nil {
		return nil, err
	}

	// один и тот же ключ для живого запроса и для повтора из очереди
	live := req.Clone(req.Context())
	opID := req.Header.Get(api.IdempotencyKeyHeader)
	if opID == "" {
		opID = uuid.NewString()
		live.Header.Set(api.IdempotencyKeyHeader, opID)
	}

	op := newOperation(req.Method, route, opID, body)
	ctx := context.WithoutCancel(req.Context())

	if op.Type != models.OperationCreate {
		if models.IsTempID(op.EntityID) {
			return i.mutateTemp(ctx, req, op)
		}
		pending, err := i.queue.Pending(ctx, op.EntityType, op.EntityID)
		if err != nil {
			return nil, fmt.Errorf("failed to check pending operations: %w", err)
		}
		if len(pending) > 0 {
			// встаем в очередь за старшими операциями сущности
			return i.enqueue(ctx, req, op)
		}
	}

	resp, err := i.next.RoundTrip(live)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	if err == nil {
		drainAndClose(resp)
	}
	if req.Context().Err() != nil {
		// клиент ушел сам
		return nil, req.Context().Err()
	}

	return i.enqueue(ctx, req, op)
}

func newOperation(method string, route Route, opID string, body []byte) *models.Operation {
	op := &models.Operation{
		ID:         opID,
		EntityType: route.EntityType,
		EntityID:   route.EntityID,
		Payload:    json.RawMessage(body),
	}
	switch method {
	case http.MethodPost:
		op.Type = models.OperationCreate
		op.EntityID = models.NewTempID()
	case http.MethodDelete:
		op.Type = models.OperationDelete
		op.Payload = nil
	default:
		op.Type = models.OperationUpdate
	}
	return op
}

// mutateTemp handles an update or delete of an entity the server has not
// assigned an id to yet. Deleting it cancels the whole queued chain.
func (i *Interceptor) mutateTemp(ctx context.Context, req *http.Request, op *models.Operation) (*http.Response, error) {
	known, err := queue.TempKnown(ctx, i.queue, i.store, op.EntityType, op.EntityID)
	if err != nil {
		return nil, err
	}
	if !known {
		return jsonResponse(req, http.StatusNotFound, api.ErrorResponse{
			Error:   http.StatusText(http.StatusNotFound),
			Message: "unknown temporary id " + op.EntityID,
		}), nil
	}

	if op.Type != models.OperationDelete {
		return i.enqueue(ctx, req, op)
	}

	cancelled, rec, err := queue.CancelTemp(ctx, i.queue, i.store, op.EntityType, op.EntityID)
	if err != nil {
		return nil, err
	}
	i.applyLocally(ctx, op)

	args := []any{"entity_type", op.EntityType, "temp_id", op.EntityID, "operations", len(cancelled)}
	if rec != nil {
		args = append(args, "server_id", rec.ServerID)
	}
	i.logger.InfoContext(ctx, "Cancelled unsynced entity", args...)

	return jsonResponse(req, http.StatusOK, api.PendingSyncResponse{
		Status:        api.StatusCancelled,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		OperationType: string(op.Type),
		Cancelled:     len(cancelled),
	}), nil
}

// enqueue stores op, mirrors it locally and answers 202
func (i *Interceptor) enqueue(ctx context.Context, req *http.Request, op *models.Operation) (*http.Response, error) {
	if len(op.Payload) > 0 && !json.Valid(op.Payload) {
		// в очередь попадает только JSON
		return nil, fmt.Errorf("failed to queue %s %s: body is not JSON", req.Method, req.URL.Path)
	}

	if err := i.queue.Enqueue(ctx, op); err != nil {
		return nil, fmt.Errorf("failed to queue %s %s: %w", req.Method, req.URL.Path, err)
	}
	i.applyLocally(ctx, op)

	if i.messages != nil {
		i.messages.Publish(bus.NewOperationQueued(op))
	}
	i.logger.InfoContext(ctx, "Request queued for sync",
		"method", req.Method,
		"path", req.URL.Path,
		"operation_id", op.ID,
		"entity_id", op.EntityID)

	return jsonResponse(req, http.StatusAccepted, api.PendingSyncResponse{
		Status:        api.StatusPendingSync,
		OperationID:   op.ID,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		OperationType: string(op.Type),
	}), nil
}

// applyLocally mirrors a queued mutation into the local store
func (i *Interceptor) applyLocally(ctx context.Context, op *models.Operation) {
	var err error
	switch op.Type {
	case models.OperationDelete:
		err = i.store.RemoveRecord(ctx, op.EntityType, op.EntityID)
	default:
		if len(op.Payload) == 0 {
			return
		}
		err = i.store.PutRecord(ctx, &models.Record{
			EntityType: op.EntityType,
			ID:         op.EntityID,
			Payload:    op.Payload,
			UpdatedAt:  i.now().UTC(),
		})
	}
	if err != nil {
		i.logger.WarnContext(ctx, "Failed to mirror queued operation locally", "operation", op.String(), "error", err)
	}
}

// networkFirst serves live responses and falls back to the cache
func (i *Interceptor) networkFirst(req *http.Request) (*http.Response, error) {
	resp, fetchErr := i.fetchAndStore(req)
	if fetchErr == nil && resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	if fetchErr == nil {
		drainAndClose(resp)
	}

	if cached := i.lookup(req); cached != nil {
		out := cachedResponse(req, cached)
		out.Header.Set(CacheHeader, CacheStale)
		return out, nil
	}

	return jsonResponse(req, http.StatusServiceUnavailable, api.ErrorResponse{
		Error:   "offline",
		Message: "the server is unreachable and no cached response is available",
	}), nil
}

// cacheFirst serves immutable assets from the cache without revalidation
func (i *Interceptor) cacheFirst(req *http.Request) (*http.Response, error) {
	if cached := i.lookup(req); cached != nil {
		out := cachedResponse(req, cached)
		out.Header.Set(CacheHeader, CacheHit)
		return out, nil
	}
	return i.fetchAndStore(req)
}

// staleWhileRevalidate serves the cached page and refreshes it in the
// background. Without a cached copy it waits for the network and falls
// back to the offline page.
func (i *Interceptor) staleWhileRevalidate(req *http.Request) (*http.Response, error) {
	if cached := i.lookup(req); cached != nil {
		i.revalidateInBackground(req)
		out := cachedResponse(req, cached)
		out.Header.Set(CacheHeader, CacheStale)
		return out, nil
	}

	resp, err := i.fetchAndStore(req)
	if err == nil && resp.StatusCode < http.StatusInternalServerError {
		return resp, nil
	}
	if err == nil {
		drainAndClose(resp)
	}
	return offlinePage(req), nil
}

func (i *Interceptor) revalidateInBackground(req *http.Request) {
	key := requestKey(req)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), i.revalidate)
	bg := req.Clone(ctx)

	i.wg.Add(1)
	ch := i.group.DoChan(key, func() (any, error) {
		resp, err := i.fetchAndStore(bg)
		if err != nil {
			return nil, err
		}
		drainAndClose(resp)
		return nil, nil
	})
	go func() {
		defer i.wg.Done()
		defer cancel()
		if res := <-ch; res.Err != nil {
			i.logger.Debug("Background revalidation failed", "key", key, "error", res.Err)
		}
	}()
}

// fetchAndStore performs the request and caches 2xx responses
func (i *Interceptor) fetchAndStore(req *http.Request) (*http.Response, error) {
	resp, err := i.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || req.Method != http.MethodGet {
		return resp, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) > maxBodySize {
		// слишком большой ответ не кэшируем
		return resp, nil
	}

	entry := &models.CachedResponse{
		RequestKey:  requestKey(req),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Generation:  i.generation,
		StoredAt:    i.now().UTC(),
		Header:      make(map[string]string),
	}
	for _, h := range cachedHeaders {
		if v := resp.Header.Get(h); v != "" {
			entry.Header[h] = v
		}
	}
	if err := i.cache.PutCachedResponse(context.WithoutCancel(req.Context()), entry); err != nil {
		i.logger.Warn("Failed to cache response", "key", entry.RequestKey, "error", err)
	}
	return resp, nil
}

func (i *Interceptor) lookup(req *http.Request) *models.CachedResponse {
	cached, err := i.cache.GetCachedResponse(req.Context(), requestKey(req))
	if err != nil {
		if !errors.Is(err, storage.ErrCacheMiss) {
			i.logger.Warn("Cache lookup failed", "path", req.URL.Path, "error", err)
		}
		return nil
	}
	if cached.Generation != i.generation {
		return nil
	}
	return cached
}

// requestKey identifies a cached response; HEAD shares the GET entry
func requestKey(req *http.Request) string {
	return http.MethodGet + " " + req.URL.RequestURI()
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodySize+1))
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodySize)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.ContentLength = int64(len(body))
	return body, nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	resp.Body.Close()
}
