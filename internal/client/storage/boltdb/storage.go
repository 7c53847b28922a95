package boltdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/validation"
)

var (
	// BoltDB bucket names
	bucketAuth            = []byte("auth")
	bucketMetadata        = []byte("metadata")
	bucketOperations      = []byte("operations")
	bucketOperationIndex  = []byte("operationIndex")
	bucketCachedResponses = []byte("cachedResponses")
	bucketReconciliations = []byte("reconciliations")
)

// reserved are bucket names that can't be used as entity tables.
var reserved = map[string]struct{}{
	string(bucketAuth):            {},
	string(bucketMetadata):        {},
	string(bucketOperations):      {},
	string(bucketOperationIndex):  {},
	string(bucketCachedResponses): {},
	string(bucketReconciliations): {},
}

// Compile-time interface checks
var (
	_ storage.AuthStorage           = (*Storage)(nil)
	_ storage.MetadataStorage       = (*Storage)(nil)
	_ storage.RecordStorage         = (*Storage)(nil)
	_ storage.OperationStorage      = (*Storage)(nil)
	_ storage.ReconciliationStorage = (*Storage)(nil)
	_ storage.CacheStorage          = (*Storage)(nil)
)

// Storage represents BoltDB storage implementation for client.
// One database file holds everything of one origin.
type Storage struct {
	db          *bbolt.DB
	entityTypes []string
	mu          sync.RWMutex
}

type options struct {
	entityTypes []string
	lockTimeout time.Duration
}

// Option configures New.
type Option func(*options)

// WithEntityTypes sets the entity tables created up front.
// Tables for other valid entity types are still created on first write.
func WithEntityTypes(types ...string) Option {
	return func(o *options) {
		o.entityTypes = types
	}
}

// WithLockTimeout bounds the wait for the database file lock held by another process.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		o.lockTimeout = d
	}
}

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string, opts ...Option) (*Storage, error) {
	o := options{
		entityTypes: models.DefaultEntityTypes(),
		lockTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	for _, et := range o.entityTypes {
		if err := checkEntityType(et); err != nil {
			return nil, err
		}
	}

	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: o.lockTimeout})
	if errors.Is(err, berrors.ErrTimeout) {
		return nil, fmt.Errorf("failed to open %s: %w", dbPath, storage.ErrStoreLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db, entityTypes: o.entityTypes}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database file path.
func (s *Storage) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ""
	}
	return s.db.Path()
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{
			bucketAuth, bucketMetadata, bucketOperations,
			bucketOperationIndex, bucketCachedResponses, bucketReconciliations,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}

		// По одной таблице на тип сущности
		for _, et := range s.entityTypes {
			if _, err := tx.CreateBucketIfNotExists([]byte(et)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", et, err)
			}
		}

		return nil
	})
}

// update runs fn in a read-write transaction, mapping engine failures to
// storage.UnavailableError.
func (s *Storage) update(op string, fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return storage.Unavailable(op, storage.ErrStorageClosed)
	}
	return storage.Unavailable(op, s.db.Update(fn))
}

// view runs fn in a read-only transaction.
func (s *Storage) view(op string, fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return storage.Unavailable(op, storage.ErrStorageClosed)
	}
	return storage.Unavailable(op, s.db.View(fn))
}

func checkEntityType(entityType string) error {
	if err := validation.ValidateEntityType(entityType); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidEntityType, err)
	}
	if _, ok := reserved[entityType]; ok {
		return fmt.Errorf("%w: %q is reserved", storage.ErrInvalidEntityType, entityType)
	}
	return nil
}

func bucketNotFound(name []byte) error {
	return fmt.Errorf("%s bucket not found", name)
}
