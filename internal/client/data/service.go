// Package data is the application-facing entry point for entity reads and
// writes. Writes are applied to the local store first and then either sent
// directly or put into the sync queue.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage"
	syncmgr "github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/validation"
	"github.com/iudanet/offsync/pkg/api"
)

// RemoteAPI is the collaborator API as seen by the data service
type RemoteAPI interface {
	syncmgr.RemoteAPI
	Get(ctx context.Context, token, entityType, id string) (*api.Resource, error)
	List(ctx context.Context, token, entityType string) ([]api.Resource, error)
}

// Connectivity reports whether the remote API is believed reachable
type Connectivity interface {
	Online() bool
}

// Store is the part of the local store the data service uses
type Store interface {
	storage.RecordStorage
	storage.ReconciliationStorage
}

// Result describes where a write ended up
type Result struct {
	Record      *models.Record // локальное состояние после записи, nil для delete
	OperationID string         // операция в очереди, если запись не ушла сразу
	Queued      bool
	Cancelled   int // сколько операций отменено удалением временной сущности
}

// Service performs optimistic writes and local-first reads
type Service struct {
	queue  queue.Queue
	store  Store
	remote RemoteAPI
	tokens syncmgr.TokenProvider
	conn   Connectivity
	events *bus.Bus[bus.Event]
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a data service. conn and events may be nil; without
// conn the service always attempts the direct call first.
func NewService(
	q queue.Queue,
	store Store,
	remote RemoteAPI,
	tokens syncmgr.TokenProvider,
	conn Connectivity,
	events *bus.Bus[bus.Event],
	logger *slog.Logger,
) *Service {
	return &Service{
		queue:  q,
		store:  store,
		remote: remote,
		tokens: tokens,
		conn:   conn,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock replaces the time source (tests)
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create stores a new entity under a temporary id and sends it
func (s *Service) Create(ctx context.Context, entityType string, payload json.RawMessage) (*Result, error) {
	if err := validate(entityType, payload); err != nil {
		return nil, err
	}

	op := s.newOperation(models.OperationCreate, entityType, models.NewTempID(), payload)
	rec := s.record(op)

	if err := s.store.PutRecord(ctx, rec); err != nil {
		if storage.IsDegraded(err) {
			return s.liveOnly(ctx, op, err)
		}
		return nil, fmt.Errorf("failed to save %s: %w", rec.ID, err)
	}

	if token, ok := s.liveToken(ctx); ok {
		res, err := s.remote.Create(ctx, token, entityType, payload, op.ID)
		switch {
		case err == nil:
			canonical := recordFrom(entityType, res)
			if err := s.store.ReplaceRecordID(ctx, entityType, rec.ID, canonical); err != nil {
				s.degraded(err)
				return nil, fmt.Errorf("failed to store created %s: %w", canonical.ID, err)
			}
			return &Result{Record: canonical}, nil
		case apiclient.IsPermanent(err):
			// сервер отклонил: временная запись не нужна
			if rmErr := s.store.RemoveRecord(ctx, entityType, rec.ID); rmErr != nil {
				s.logger.WarnContext(ctx, "Failed to drop rejected record", "entity_id", rec.ID, "error", rmErr)
			}
			return nil, err
		}
		s.logger.InfoContext(ctx, "Direct create failed, queueing", "entity_type", entityType, "error", err)
	}

	return s.enqueue(ctx, op, rec)
}

// Update replaces the entity payload
func (s *Service) Update(ctx context.Context, entityType, id string, payload json.RawMessage) (*Result, error) {
	if err := validate(entityType, payload); err != nil {
		return nil, err
	}
	if err := validation.ValidateEntityID(id); err != nil {
		return nil, err
	}

	if err := s.knownTemp(ctx, entityType, id); err != nil {
		return nil, err
	}

	op := s.newOperation(models.OperationUpdate, entityType, id, payload)
	rec := s.record(op)

	prev, err := s.previous(ctx, entityType, id)
	if err == nil {
		err = s.store.PutRecord(ctx, rec)
	}
	if err != nil {
		if storage.IsDegraded(err) {
			return s.liveOnly(ctx, op, err)
		}
		return nil, fmt.Errorf("failed to save %s/%s: %w", entityType, id, err)
	}

	direct, err := s.canSendDirectly(ctx, op)
	if err != nil {
		return nil, err
	}
	if token, ok := s.liveToken(ctx); ok && direct {
		res, err := s.remote.Update(ctx, token, entityType, id, payload, op.ID)
		switch {
		case err == nil:
			if len(res.Data) > 0 {
				canonical := recordFrom(entityType, res)
				canonical.ID = id
				if err := s.store.PutRecord(ctx, canonical); err != nil {
					return nil, fmt.Errorf("failed to store updated %s/%s: %w", entityType, id, err)
				}
				rec = canonical
			}
			return &Result{Record: rec}, nil
		case apiclient.IsPermanent(err):
			s.restore(ctx, entityType, id, prev)
			return nil, err
		}
		s.logger.InfoContext(ctx, "Direct update failed, queueing", "entity_type", entityType, "entity_id", id, "error", err)
	}

	return s.enqueue(ctx, op, rec)
}

// Delete removes the entity. Deleting an entity that only exists under a
// temporary id cancels its create and every queued follow-up.
func (s *Service) Delete(ctx context.Context, entityType, id string) (*Result, error) {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return nil, err
	}
	if err := validation.ValidateEntityID(id); err != nil {
		return nil, err
	}

	if err := s.knownTemp(ctx, entityType, id); err != nil {
		return nil, err
	}

	op := s.newOperation(models.OperationDelete, entityType, id, nil)

	prev, err := s.previous(ctx, entityType, id)
	if err == nil {
		err = s.store.RemoveRecord(ctx, entityType, id)
	}
	if err != nil {
		if storage.IsDegraded(err) {
			return s.liveOnly(ctx, op, err)
		}
		return nil, fmt.Errorf("failed to remove %s/%s: %w", entityType, id, err)
	}

	if models.IsTempID(id) {
		return s.cancel(ctx, entityType, id)
	}

	direct, err := s.canSendDirectly(ctx, op)
	if err != nil {
		return nil, err
	}
	if token, ok := s.liveToken(ctx); ok && direct {
		err := s.remote.Delete(ctx, token, entityType, id, op.ID)
		switch {
		case err == nil, apiclient.IsNotFound(err):
			return &Result{}, nil
		case apiclient.IsPermanent(err):
			s.restore(ctx, entityType, id, prev)
			return nil, err
		}
		s.logger.InfoContext(ctx, "Direct delete failed, queueing", "entity_type", entityType, "entity_id", id, "error", err)
	}

	return s.enqueue(ctx, op, nil)
}

// cancel drops the queued chain of a temporary entity. A create that was
// already acknowledged is turned into a server-side delete by the
// reconciliation.
func (s *Service) cancel(ctx context.Context, entityType, tempID string) (*Result, error) {
	cancelled, rec, err := queue.CancelTemp(ctx, s.queue, s.store, entityType, tempID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		s.logger.InfoContext(ctx, "Cancelled pending reconciliation",
			"entity_type", entityType,
			"temp_id", tempID,
			"server_id", rec.ServerID)
	}

	s.logger.InfoContext(ctx, "Cancelled unsynced entity",
		"entity_type", entityType,
		"temp_id", tempID,
		"operations", len(cancelled))
	return &Result{Cancelled: len(cancelled)}, nil
}

// knownTemp rejects temporary ids nothing in the queue or in the
// reconciliations refers to
func (s *Service) knownTemp(ctx context.Context, entityType, id string) error {
	if !models.IsTempID(id) {
		return nil
	}
	known, err := queue.TempKnown(ctx, s.queue, s.store, entityType, id)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%s/%s: %w", entityType, id, ErrNotFound)
	}
	return nil
}

// Get returns the local record, fetching it from the server if it is not
// stored locally
func (s *Service) Get(ctx context.Context, entityType, id string) (*models.Record, error) {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return nil, err
	}

	rec, err := s.store.GetRecord(ctx, entityType, id)
	switch {
	case err == nil:
		return rec, nil
	case storage.IsDegraded(err):
		s.degraded(err)
		return s.fetch(ctx, entityType, id, err, false)
	case errors.Is(err, storage.ErrRecordNotFound):
		if models.IsTempID(id) {
			return nil, fmt.Errorf("%s/%s: %w", entityType, id, ErrNotFound)
		}
		// отложенный delete: не воскрешаем запись с сервера
		pending, err := s.queue.Pending(ctx, entityType, id)
		if err != nil {
			return nil, err
		}
		if len(pending) > 0 {
			return nil, fmt.Errorf("%s/%s: %w", entityType, id, ErrNotFound)
		}
		return s.fetch(ctx, entityType, id, ErrNotFound, true)
	default:
		return nil, fmt.Errorf("failed to get %s/%s: %w", entityType, id, err)
	}
}

func (s *Service) fetch(ctx context.Context, entityType, id string, cause error, store bool) (*models.Record, error) {
	token, ok := s.liveToken(ctx)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", entityType, id, unavailable(cause))
	}
	res, err := s.remote.Get(ctx, token, entityType, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, fmt.Errorf("%s/%s: %w", entityType, id, ErrNotFound)
		}
		return nil, err
	}

	rec := recordFrom(entityType, res)
	if store {
		if err := s.store.PutRecord(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "Failed to cache fetched record", "entity_type", entityType, "entity_id", id, "error", err)
		}
	}
	return rec, nil
}

// List returns the local records of the type. With a failed local store it
// falls back to the server.
func (s *Service) List(ctx context.Context, entityType string) ([]*models.Record, error) {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return nil, err
	}

	recs, err := s.store.GetAllRecords(ctx, entityType)
	if err == nil {
		return recs, nil
	}
	if !storage.IsDegraded(err) {
		return nil, fmt.Errorf("failed to list %s: %w", entityType, err)
	}

	s.degraded(err)
	token, ok := s.liveToken(ctx)
	if !ok {
		return nil, unavailable(err)
	}
	items, err := s.remote.List(ctx, token, entityType)
	if err != nil {
		return nil, err
	}
	recs = make([]*models.Record, 0, len(items))
	for i := range items {
		recs = append(recs, recordFrom(entityType, &items[i]))
	}
	return recs, nil
}

// Refresh pulls the server state of entityType into the local store.
// Entities with queued operations keep their optimistic local state.
// It returns the number of records written or removed.
func (s *Service) Refresh(ctx context.Context, entityType string) (int, error) {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return 0, err
	}
	token, ok := s.liveToken(ctx)
	if !ok {
		return 0, fmt.Errorf("refresh %s: %w", entityType, ErrOffline)
	}

	items, err := s.remote.List(ctx, token, entityType)
	if err != nil {
		return 0, err
	}

	ops, err := s.queue.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	busy := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if op.EntityType == entityType {
			busy[op.EntityID] = struct{}{}
		}
	}

	changed := 0
	remote := make(map[string]struct{}, len(items))
	for i := range items {
		rec := recordFrom(entityType, &items[i])
		remote[rec.ID] = struct{}{}
		if _, ok := busy[rec.ID]; ok {
			continue
		}
		if err := s.store.PutRecord(ctx, rec); err != nil {
			return changed, fmt.Errorf("failed to store %s/%s: %w", entityType, rec.ID, err)
		}
		changed++
	}

	local, err := s.store.GetAllRecords(ctx, entityType)
	if err != nil {
		return changed, fmt.Errorf("failed to list %s: %w", entityType, err)
	}
	for _, rec := range local {
		_, known := remote[rec.ID]
		_, queued := busy[rec.ID]
		if known || queued || models.IsTempID(rec.ID) {
			continue
		}
		// удалено на сервере
		if err := s.store.RemoveRecord(ctx, entityType, rec.ID); err != nil {
			return changed, fmt.Errorf("failed to remove %s/%s: %w", entityType, rec.ID, err)
		}
		changed++
	}

	s.logger.InfoContext(ctx, "Refreshed local records", "entity_type", entityType, "changed", changed)
	return changed, nil
}

// liveOnly bypasses the failed local store and talks to the server
func (s *Service) liveOnly(ctx context.Context, op *models.Operation, cause error) (*Result, error) {
	s.degraded(cause)

	token, ok := s.liveToken(ctx)
	if !ok || (op.Type != models.OperationCreate && models.IsTempID(op.EntityID)) {
		return nil, fmt.Errorf("%s: %w", op, unavailable(cause))
	}

	s.logger.WarnContext(ctx, "Local store unavailable, sending directly", "operation", op.String())
	switch op.Type {
	case models.OperationCreate:
		res, err := s.remote.Create(ctx, token, op.EntityType, op.Payload, op.ID)
		if err != nil {
			return nil, err
		}
		return &Result{Record: recordFrom(op.EntityType, res)}, nil
	case models.OperationUpdate:
		res, err := s.remote.Update(ctx, token, op.EntityType, op.EntityID, op.Payload, op.ID)
		if err != nil {
			return nil, err
		}
		rec := recordFrom(op.EntityType, res)
		rec.ID = op.EntityID
		return &Result{Record: rec}, nil
	default:
		if err := s.remote.Delete(ctx, token, op.EntityType, op.EntityID, op.ID); err != nil && !apiclient.IsNotFound(err) {
			return nil, err
		}
		return &Result{}, nil
	}
}

func (s *Service) enqueue(ctx context.Context, op *models.Operation, rec *models.Record) (*Result, error) {
	if err := s.queue.Enqueue(ctx, op); err != nil {
		if storage.IsDegraded(err) {
			s.degraded(err)
		}
		return nil, err
	}
	return &Result{Record: rec, OperationID: op.ID, Queued: true}, nil
}

// canSendDirectly is false while earlier operations of the entity are queued
func (s *Service) canSendDirectly(ctx context.Context, op *models.Operation) (bool, error) {
	if models.IsTempID(op.EntityID) {
		return false, nil
	}
	pending, err := s.queue.Pending(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return false, fmt.Errorf("failed to check pending operations: %w", err)
	}
	return len(pending) == 0, nil
}

func (s *Service) liveToken(ctx context.Context) (string, bool) {
	if s.conn != nil && !s.conn.Online() {
		return "", false
	}
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return "", false
	}
	return token, true
}

// previous loads the record a failed direct call should restore
func (s *Service) previous(ctx context.Context, entityType, id string) (*models.Record, error) {
	rec, err := s.store.GetRecord(ctx, entityType, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *Service) restore(ctx context.Context, entityType, id string, prev *models.Record) {
	var err error
	if prev != nil {
		err = s.store.PutRecord(ctx, prev)
	} else {
		err = s.store.RemoveRecord(ctx, entityType, id)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to restore record after rejection", "entity_type", entityType, "entity_id", id, "error", err)
	}
}

func (s *Service) newOperation(t models.OperationType, entityType, id string, payload json.RawMessage) *models.Operation {
	return &models.Operation{
		ID:         uuid.NewString(),
		Type:       t,
		EntityType: entityType,
		EntityID:   id,
		Payload:    payload,
	}
}

func (s *Service) record(op *models.Operation) *models.Record {
	return &models.Record{
		EntityType: op.EntityType,
		ID:         op.EntityID,
		Payload:    op.Payload,
		UpdatedAt:  s.now().UTC(),
	}
}

func (s *Service) degraded(err error) {
	if !storage.IsDegraded(err) || s.events == nil {
		return
	}
	s.events.Publish(bus.Event{At: s.now(), Kind: bus.EventStorageDegraded, Err: err})
}

func recordFrom(entityType string, res *api.Resource) *models.Record {
	return &models.Record{
		EntityType: entityType,
		ID:         res.ID,
		Payload:    res.Data,
		UpdatedAt:  res.UpdatedAt,
	}
}

func validate(entityType string, payload json.RawMessage) error {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return err
	}
	return validation.ValidatePayload(payload)
}

func unavailable(cause error) error {
	if errors.Is(cause, ErrNotFound) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, cause)
}
