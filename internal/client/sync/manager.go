// Package sync replays the sync queue against the remote API and reconciles
// the results into the local store.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	apiclient "github.com/iudanet/offsync/internal/client/api"
	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/queue"
	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/jsonref"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/pkg/api"
)

//go:generate moq -out remote_mock.go . RemoteAPI

// DefaultRequestTimeout bounds one remote call during a drain
const DefaultRequestTimeout = 15 * time.Second

// RemoteAPI is the part of the collaborator API the drain replays
// operations against. Every call carries the operation ID as idempotency key.
type RemoteAPI interface {
	Create(ctx context.Context, token, entityType string, payload json.RawMessage, idempotencyKey string) (*api.Resource, error)
	Update(ctx context.Context, token, entityType, id string, payload json.RawMessage, idempotencyKey string) (*api.Resource, error)
	Delete(ctx context.Context, token, entityType, id, idempotencyKey string) error
}

// TokenProvider returns a currently valid access token
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// State of the sync manager
type State int32

const (
	StateIdle State = iota
	StateDraining
	StateReconciling
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateReconciling:
		return "reconciling"
	case StateRetrying:
		return "retrying"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config настройки менеджера синхронизации
type Config struct {
	Backoff        BackoffConfig
	RequestTimeout time.Duration
}

// Result summarizes one drain pass
type Result struct {
	Synced     int // подтвержденные сервером операции
	Failed     int // операции, удаленные из-за постоянной ошибки
	Retried    int // операции, отложенные после транзиентной ошибки
	Deferred   int // операции, чей backoff еще не истек
	Reconciled int // завершенные сверки временных id
	Remaining  int // операций в очереди после прохода
}

// DrainOptions are the resolved settings of one pass
type DrainOptions struct {
	Reason        string
	IgnoreBackoff bool
}

// DrainOption configures a single drain pass
type DrainOption func(*DrainOptions)

// ResolveOptions applies opts to zero DrainOptions
func ResolveOptions(opts ...DrainOption) DrainOptions {
	var o DrainOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIgnoreBackoff sends operations even if their backoff hasn't expired.
// Used by connectivity and manual triggers.
func WithIgnoreBackoff() DrainOption {
	return func(o *DrainOptions) {
		o.IgnoreBackoff = true
	}
}

// WithReason labels the pass in logs
func WithReason(reason string) DrainOption {
	return func(o *DrainOptions) {
		o.Reason = reason
	}
}

// Manager drains the sync queue. Only one pass runs at a time.
type Manager struct {
	queue      queue.Queue
	store      Store
	remote     RemoteAPI
	tokens     TokenProvider
	events     *bus.Bus[bus.Event]
	reconciler *Reconciler
	logger     *slog.Logger
	now        func() time.Time
	cancel     context.CancelFunc
	cfg        Config
	mu         sync.Mutex // защищает cancel
	running    atomic.Bool
	state      atomic.Int32
}

// NewManager creates a sync manager; events may be nil
func NewManager(
	q queue.Queue,
	store Store,
	remote RemoteAPI,
	tokens TokenProvider,
	events *bus.Bus[bus.Event],
	cfg Config,
	logger *slog.Logger,
) *Manager {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	return &Manager{
		queue:      q,
		store:      store,
		remote:     remote,
		tokens:     tokens,
		events:     events,
		reconciler: NewReconciler(q, store, events, logger),
		logger:     logger,
		now:        time.Now,
		cfg:        cfg,
	}
}

// SetClock replaces the time source, tests only
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.reconciler.now = now
}

// State returns the current state of the manager
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Running reports whether a pass is in progress
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Abort cancels the running pass, if any. Operations already acknowledged
// by the server are still removed; unsent operations stay untouched.
func (m *Manager) Abort() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}
}

// rewrite maps a reconciled temporary id to its server id
type rewrite struct {
	entityType string
	serverID   string
}

// pass holds the state of one drain
type pass struct {
	opts     DrainOptions
	result   *Result
	token    string
	rewrites map[string]rewrite // tempID -> server id
	halted   map[string]bool    // entity keys blocked until the next pass
}

func (p *pass) halt(entityType string, ids ...string) {
	for _, id := range ids {
		p.halted[entityType+"/"+id] = true
	}
}

// Drain replays the queue once. A concurrent call returns ErrDrainInProgress.
func (m *Manager) Drain(ctx context.Context, opts ...DrainOption) (*Result, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer m.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.cancel = nil
		m.mu.Unlock()
		cancel()
	}()

	p := &pass{
		opts:     ResolveOptions(opts...),
		result:   &Result{},
		rewrites: make(map[string]rewrite),
		halted:   make(map[string]bool),
	}

	m.setState(StateDraining)
	defer m.setState(StateIdle)

	m.publish(bus.Event{Kind: bus.EventDrainStarted, Detail: p.opts.Reason})
	m.logger.InfoContext(ctx, "Drain started",
		"reason", p.opts.Reason,
		"ignore_backoff", p.opts.IgnoreBackoff)

	err := m.drain(ctx, p)

	// аборт не ошибка для вызывающего кода координатора, но сообщаем о нем
	if err == nil && ctx.Err() != nil {
		err = ErrAborted
	}

	if n, lenErr := m.queue.Len(context.WithoutCancel(ctx)); lenErr == nil {
		p.result.Remaining = n
	}

	if err == nil {
		if tsErr := m.store.SaveLastSyncTimestamp(ctx, m.now().Unix()); tsErr != nil {
			m.logger.WarnContext(ctx, "Failed to save last sync timestamp", "error", tsErr)
		}
	}

	finished := bus.Event{
		Kind:   bus.EventDrainFinished,
		Detail: fmt.Sprintf("synced=%d failed=%d retried=%d remaining=%d", p.result.Synced, p.result.Failed, p.result.Retried, p.result.Remaining),
		Err:    err,
	}
	m.publish(finished)

	m.logger.InfoContext(ctx, "Drain finished",
		"synced", p.result.Synced,
		"failed", p.result.Failed,
		"retried", p.result.Retried,
		"deferred", p.result.Deferred,
		"reconciled", p.result.Reconciled,
		"remaining", p.result.Remaining,
		"error", err)

	return p.result, err
}

func (m *Manager) drain(ctx context.Context, p *pass) error {
	if err := m.resumeReconciliations(ctx, p); err != nil {
		return err
	}

	token, err := m.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	p.token = token

	ops, err := m.queue.PeekAll(ctx)
	if err != nil {
		m.degraded(err)
		return fmt.Errorf("failed to read queue: %w", err)
	}

	for _, group := range groupByEntity(ops) {
		if ctx.Err() != nil {
			return nil
		}
		if err := m.drainGroup(ctx, p, group); err != nil {
			return err
		}
	}
	return nil
}

// resumeReconciliations finishes phase 2 of creates acknowledged earlier
func (m *Manager) resumeReconciliations(ctx context.Context, p *pass) error {
	recs, err := m.store.ListReconciliations(ctx)
	if err != nil {
		m.degraded(err)
		return fmt.Errorf("failed to list reconciliations: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	m.setState(StateReconciling)
	defer m.setState(StateDraining)

	for _, rec := range recs {
		if err := m.reconciler.Apply(ctx, rec); err != nil {
			m.logger.WarnContext(ctx, "Reconciliation still failing",
				"entity_type", rec.EntityType,
				"temp_id", rec.TempID,
				"server_id", rec.ServerID,
				"error", err)
			m.degraded(err)
			p.halt(rec.EntityType, rec.TempID, rec.ServerID)
			continue
		}
		p.rewrites[rec.TempID] = rewrite{entityType: rec.EntityType, serverID: rec.ServerID}
		p.result.Reconciled++
	}
	return nil
}

// drainGroup sends the operations of one entity in order and stops at the
// first operation that doesn't go through.
func (m *Manager) drainGroup(ctx context.Context, p *pass, group []*models.Operation) error {
	for _, queued := range group {
		if ctx.Err() != nil {
			return nil
		}

		op := p.apply(queued)
		if p.halted[op.EntityKey()] {
			return nil
		}

		// цепочка временного id должна начинаться с create
		if models.IsTempID(op.EntityID) && op.Type != models.OperationCreate {
			orphan, err := m.orphaned(ctx, op)
			if err != nil {
				m.degraded(err)
				return fmt.Errorf("failed to list reconciliations: %w", err)
			}
			if !orphan {
				m.logger.WarnContext(ctx, "Operation waits for create of its entity", "operation", op.String())
				p.result.Deferred++
				return nil
			}
			if err := m.dropOrphan(ctx, p, op); err != nil {
				return err
			}
			continue
		}

		if !p.opts.IgnoreBackoff && op.NextAttemptAt.After(m.now()) {
			p.result.Deferred++
			return nil
		}

		res, sendErr := m.send(ctx, p.token, op)
		if sendErr != nil {
			stop, err := m.handleFailure(ctx, p, op, sendErr)
			if err != nil || stop {
				return err
			}
			continue
		}

		// Ответ получен: дальше работаем без отмены, иначе подтвержденная
		// операция осталась бы в очереди
		local := context.WithoutCancel(ctx)
		if err := m.handleSuccess(local, p, op, res); err != nil {
			m.logger.ErrorContext(ctx, "Failed to apply acknowledged operation",
				"operation", op.String(),
				"error", err)
			m.degraded(err)
			p.halt(op.EntityType, op.EntityID)
			return nil
		}
		p.result.Synced++
	}
	return nil
}

// apply brings an in-memory operation in line with rewrites done earlier
// in this pass; the stored copy is rewritten by the reconciler.
func (p *pass) apply(op *models.Operation) *models.Operation {
	if len(p.rewrites) == 0 {
		return op
	}

	op = op.Clone()
	if rw, ok := p.rewrites[op.EntityID]; ok && rw.entityType == op.EntityType {
		op.EntityID = rw.serverID
	}
	for tempID, rw := range p.rewrites {
		if payload, changed, err := jsonref.Replace(op.Payload, tempID, rw.serverID); err == nil && changed {
			op.Payload = payload
		}
	}
	return op
}

func (m *Manager) send(ctx context.Context, token string, op *models.Operation) (*api.Resource, error) {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.RequestTimeout)
	defer cancel()

	switch op.Type {
	case models.OperationCreate:
		return m.remote.Create(reqCtx, token, op.EntityType, op.Payload, op.ID)
	case models.OperationUpdate:
		return m.remote.Update(reqCtx, token, op.EntityType, op.EntityID, op.Payload, op.ID)
	case models.OperationDelete:
		err := m.remote.Delete(reqCtx, token, op.EntityType, op.EntityID, op.ID)
		if apiclient.IsNotFound(err) {
			// сущности уже нет на сервере
			return nil, nil
		}
		return nil, err
	}
	return nil, fmt.Errorf("unknown operation type %q", op.Type)
}

func (m *Manager) handleSuccess(ctx context.Context, p *pass, op *models.Operation, res *api.Resource) error {
	switch op.Type {
	case models.OperationCreate:
		if res == nil || res.ID == "" {
			return fmt.Errorf("create of %s returned no id", op.EntityKey())
		}

		m.setState(StateReconciling)
		defer m.setState(StateDraining)

		rec, err := m.reconciler.Begin(ctx, op, res)
		if err != nil {
			return err
		}
		m.publishSynced(op)
		if err := m.reconciler.Apply(ctx, rec); err != nil {
			// фаза 2 будет повторена в следующем проходе
			p.halt(op.EntityType, rec.TempID, rec.ServerID)
			m.logger.WarnContext(ctx, "Reconciliation deferred",
				"entity_type", rec.EntityType,
				"temp_id", rec.TempID,
				"server_id", rec.ServerID,
				"error", err)
			m.degraded(err)
			return nil
		}
		p.rewrites[rec.TempID] = rewrite{entityType: rec.EntityType, serverID: rec.ServerID}
		p.result.Reconciled++
		return nil

	case models.OperationUpdate:
		if res != nil && len(res.Data) > 0 {
			later, err := m.hasLaterOps(ctx, op)
			if err != nil {
				return err
			}
			// локальная запись отражает еще не отправленные изменения
			if !later {
				canonical := &models.Record{
					EntityType: op.EntityType,
					ID:         op.EntityID,
					Payload:    res.Data,
					UpdatedAt:  res.UpdatedAt,
				}
				if err := m.store.PutRecord(ctx, canonical); err != nil {
					return fmt.Errorf("failed to save canonical record: %w", err)
				}
			}
		}

	case models.OperationDelete:
		if err := m.store.RemoveRecord(ctx, op.EntityType, op.EntityID); err != nil {
			return fmt.Errorf("failed to remove deleted record: %w", err)
		}
	}

	if err := m.queue.Remove(ctx, op.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return err
	}
	m.publishSynced(op)
	return nil
}

func (m *Manager) hasLaterOps(ctx context.Context, op *models.Operation) (bool, error) {
	pending, err := m.queue.Pending(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return false, err
	}
	for _, other := range pending {
		if other.ID != op.ID {
			return true, nil
		}
	}
	return false, nil
}

// handleFailure classifies sendErr. stop means the rest of the group waits.
func (m *Manager) handleFailure(ctx context.Context, p *pass, op *models.Operation, sendErr error) (bool, error) {
	if ctx.Err() != nil {
		// Abort: операция не тронута
		return true, nil
	}

	if apiclient.IsUnauthorized(sendErr) {
		m.logger.WarnContext(ctx, "Server rejected access token", "operation", op.String())
		return true, fmt.Errorf("%w: %v", ErrUnauthenticated, sendErr)
	}

	attempts := op.Attempts + 1
	if apiclient.IsTransient(sendErr) && !m.cfg.Backoff.Exhausted(attempts) {
		m.setState(StateRetrying)
		defer m.setState(StateDraining)

		next := m.now().Add(m.cfg.Backoff.Delay(attempts))
		if err := m.queue.MarkAttempt(ctx, op.ID, sendErr, next); err != nil {
			m.degraded(err)
			return true, fmt.Errorf("failed to mark attempt: %w", err)
		}
		p.result.Retried++
		m.logger.InfoContext(ctx, "Operation will be retried",
			"operation", op.String(),
			"attempts", attempts,
			"next_attempt_at", next,
			"error", sendErr)
		return true, nil
	}

	// Постоянная ошибка: операция удаляется, локальная запись остается как есть
	opErr := &OperationError{Op: op, Err: sendErr, Permanent: true}
	if err := m.queue.Remove(ctx, op.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		return true, err
	}
	p.result.Failed++
	m.publishFailed(op, opErr, "")
	m.logger.WarnContext(ctx, "Operation failed permanently",
		"operation", op.String(),
		"error", sendErr)

	if op.Type != models.OperationCreate {
		return false, nil
	}

	// без create вся цепочка временного id теряет смысл
	abandoned, err := m.queue.Cancel(ctx, op.EntityType, op.EntityID)
	if err != nil {
		return true, err
	}
	for _, dep := range abandoned {
		p.result.Failed++
		m.publishFailed(dep, &OperationError{Op: dep, Err: opErr, Permanent: true}, "abandoned: create "+op.ID+" failed")
	}
	return true, nil
}

// orphaned reports whether nothing can ever give op's temporary id a
// server id. The create, if queued, heads the group and was handled before.
func (m *Manager) orphaned(ctx context.Context, op *models.Operation) (bool, error) {
	recs, err := m.store.ListReconciliations(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if rec.EntityType == op.EntityType && rec.TempID == op.EntityID {
			return false, nil
		}
	}
	return true, nil
}

// dropOrphan removes an operation no pass could ever send
func (m *Manager) dropOrphan(ctx context.Context, p *pass, op *models.Operation) error {
	if err := m.queue.Remove(ctx, op.ID); err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
		m.degraded(err)
		return fmt.Errorf("failed to remove orphan operation: %w", err)
	}
	p.result.Failed++
	m.publishFailed(op, &OperationError{Op: op, Err: ErrOrphanOperation, Permanent: true}, "")
	m.logger.WarnContext(ctx, "Dropped operation without create", "operation", op.String())
	return nil
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

func (m *Manager) publish(ev bus.Event) {
	if ev.At.IsZero() {
		ev.At = m.now()
	}
	publish(m.events, ev)
}

func (m *Manager) publishSynced(op *models.Operation) {
	m.publish(bus.Event{
		Kind:          bus.EventOperationSynced,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		OperationID:   op.ID,
		OperationType: op.Type,
	})
}

func (m *Manager) publishFailed(op *models.Operation, err error, detail string) {
	m.publish(bus.Event{
		Kind:          bus.EventOperationFailed,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
		OperationID:   op.ID,
		OperationType: op.Type,
		Err:           err,
		Detail:        detail,
	})
}

func (m *Manager) degraded(err error) {
	if storage.IsDegraded(err) {
		m.publish(bus.Event{Kind: bus.EventStorageDegraded, Err: err})
	}
}

// groupByEntity splits ops into per-entity chains ordered by the first
// appearance of each entity. Order inside a chain is FIFO.
func groupByEntity(ops []*models.Operation) [][]*models.Operation {
	index := make(map[string]int)
	var groups [][]*models.Operation

	for _, op := range ops {
		key := op.EntityKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], op)
	}
	return groups
}
