package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/offsync/internal/client/storage"
	"github.com/iudanet/offsync/internal/models"
)

// Операции хранятся под 8-байтовым big-endian ключом последовательности,
// поэтому курсор bbolt отдает их в порядке постановки в очередь.
// operationIndex отображает id операции в этот ключ.

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func operationBuckets(tx *bbolt.Tx) (*bbolt.Bucket, *bbolt.Bucket, error) {
	ops := tx.Bucket(bucketOperations)
	if ops == nil {
		return nil, nil, bucketNotFound(bucketOperations)
	}
	idx := tx.Bucket(bucketOperationIndex)
	if idx == nil {
		return nil, nil, bucketNotFound(bucketOperationIndex)
	}
	return ops, idx, nil
}

// AppendOperation stores op at the tail of the log and sets op.Seq
func (s *Storage) AppendOperation(ctx context.Context, op *models.Operation) error {
	if op.ID == "" {
		return fmt.Errorf("operation id is required")
	}

	return s.update("append operation", func(tx *bbolt.Tx) error {
		ops, idx, err := operationBuckets(tx)
		if err != nil {
			return err
		}
		if idx.Get([]byte(op.ID)) != nil {
			return fmt.Errorf("operation %s already queued", op.ID)
		}

		seq, err := ops.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}
		op.Seq = seq

		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}

		key := seqKey(seq)
		if err := ops.Put(key, data); err != nil {
			return fmt.Errorf("failed to save operation: %w", err)
		}
		if err := idx.Put([]byte(op.ID), key); err != nil {
			return fmt.Errorf("failed to index operation: %w", err)
		}
		return nil
	})
}

// ListOperations returns all operations in FIFO order
func (s *Storage) ListOperations(ctx context.Context) ([]*models.Operation, error) {
	var result []*models.Operation
	err := s.view("list operations", func(tx *bbolt.Tx) error {
		ops, _, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		c := ops.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			result = append(result, op)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetOperation retrieves a queued operation by id
func (s *Storage) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	var op *models.Operation
	err := s.view("get operation", func(tx *bbolt.Tx) error {
		ops, idx, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		key := idx.Get([]byte(id))
		if key == nil {
			return storage.ErrOperationNotFound
		}
		data := ops.Get(key)
		if data == nil {
			return storage.ErrOperationNotFound
		}

		op = &models.Operation{}
		if err := json.Unmarshal(data, op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return op, nil
}

// ModifyOperation applies fn to a stored operation in place
func (s *Storage) ModifyOperation(ctx context.Context, id string, fn func(op *models.Operation)) error {
	return s.update("modify operation", func(tx *bbolt.Tx) error {
		ops, idx, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		key := idx.Get([]byte(id))
		if key == nil {
			return storage.ErrOperationNotFound
		}
		data := ops.Get(key)
		if data == nil {
			return storage.ErrOperationNotFound
		}

		op := &models.Operation{}
		if err := json.Unmarshal(data, op); err != nil {
			return fmt.Errorf("failed to unmarshal operation: %w", err)
		}
		fn(op)

		// id и позиция в очереди не меняются
		op.ID = id
		op.Seq = binary.BigEndian.Uint64(key)

		data, err = json.Marshal(op)
		if err != nil {
			return fmt.Errorf("failed to marshal operation: %w", err)
		}
		return ops.Put(key, data)
	})
}

// UpdateOperations rewrites every operation for which fn reports a change
func (s *Storage) UpdateOperations(ctx context.Context, fn func(op *models.Operation) bool) (int, error) {
	changed := 0
	err := s.update("update operations", func(tx *bbolt.Tx) error {
		ops, _, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		// Собираем изменения, курсор нельзя использовать после Put
		pending := make(map[string][]byte)
		c := ops.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if !fn(op) {
				continue
			}
			data, err := json.Marshal(op)
			if err != nil {
				return fmt.Errorf("failed to marshal operation: %w", err)
			}
			pending[string(k)] = data
		}

		for k, data := range pending {
			if err := ops.Put([]byte(k), data); err != nil {
				return fmt.Errorf("failed to save operation: %w", err)
			}
		}
		changed = len(pending)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return changed, nil
}

// DeleteOperation removes an operation from the log
func (s *Storage) DeleteOperation(ctx context.Context, id string) error {
	return s.update("delete operation", func(tx *bbolt.Tx) error {
		ops, idx, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		key := idx.Get([]byte(id))
		if key == nil {
			return storage.ErrOperationNotFound
		}
		if err := ops.Delete(key); err != nil {
			return fmt.Errorf("failed to delete operation: %w", err)
		}
		return idx.Delete([]byte(id))
	})
}

// DeleteOperations removes every operation matching fn and returns them in FIFO order
func (s *Storage) DeleteOperations(ctx context.Context, fn func(op *models.Operation) bool) ([]*models.Operation, error) {
	var deleted []*models.Operation
	err := s.update("delete operations", func(tx *bbolt.Tx) error {
		ops, idx, err := operationBuckets(tx)
		if err != nil {
			return err
		}

		var keys [][]byte
		c := ops.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			op := &models.Operation{}
			if err := json.Unmarshal(v, op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if fn(op) {
				keys = append(keys, append([]byte(nil), k...))
				deleted = append(deleted, op)
			}
		}

		for i, k := range keys {
			if err := ops.Delete(k); err != nil {
				return fmt.Errorf("failed to delete operation: %w", err)
			}
			if err := idx.Delete([]byte(deleted[i].ID)); err != nil {
				return fmt.Errorf("failed to unindex operation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
