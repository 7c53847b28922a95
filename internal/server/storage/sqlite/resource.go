package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/server/storage"
)

// CreateResource inserts a new resource
func (s *Storage) CreateResource(ctx context.Context, res *models.Resource) error {
	query := `
		INSERT INTO resources (owner_id, entity_type, id, data, deleted, updated_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		res.OwnerID,
		res.EntityType,
		res.ID,
		[]byte(res.Data),
		toMillis(res.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert resource: %w", err)
	}
	return nil
}

// UpdateResource replaces the data of a live resource
func (s *Storage) UpdateResource(ctx context.Context, res *models.Resource) error {
	query := `
		UPDATE resources SET data = ?, updated_at = ?
		WHERE owner_id = ? AND entity_type = ? AND id = ? AND deleted = 0
	`

	result, err := s.db.ExecContext(ctx, query,
		[]byte(res.Data),
		toMillis(res.UpdatedAt),
		res.OwnerID,
		res.EntityType,
		res.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	return s.checkAffected(ctx, result, res.OwnerID, res.EntityType, res.ID)
}

// GetResource retrieves a live resource
func (s *Storage) GetResource(ctx context.Context, ownerID, entityType, id string) (*models.Resource, error) {
	query := `
		SELECT owner_id, entity_type, id, data, deleted, updated_at
		FROM resources
		WHERE owner_id = ? AND entity_type = ? AND id = ?
	`

	res, err := scanResource(s.db.QueryRowContext(ctx, query, ownerID, entityType, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	if res.Deleted {
		return nil, storage.ErrResourceDeleted
	}
	return res, nil
}

// ListResources retrieves all live resources of the type
func (s *Storage) ListResources(ctx context.Context, ownerID, entityType string) ([]*models.Resource, error) {
	query := `
		SELECT owner_id, entity_type, id, data, deleted, updated_at
		FROM resources
		WHERE owner_id = ? AND entity_type = ? AND deleted = 0
		ORDER BY updated_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, ownerID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	resources := make([]*models.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return resources, nil
}

// DeleteResource marks the resource deleted
func (s *Storage) DeleteResource(ctx context.Context, ownerID, entityType, id string, at time.Time) error {
	query := `
		UPDATE resources SET deleted = 1, updated_at = ?
		WHERE owner_id = ? AND entity_type = ? AND id = ? AND deleted = 0
	`

	result, err := s.db.ExecContext(ctx, query, toMillis(at), ownerID, entityType, id)
	if err != nil {
		return fmt.Errorf("failed to delete resource: %w", err)
	}
	return s.checkAffected(ctx, result, ownerID, entityType, id)
}

// checkAffected tells a deleted resource from a missing one when nothing
// was changed
func (s *Storage) checkAffected(ctx context.Context, result sql.Result, ownerID, entityType, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	_, err = s.GetResource(ctx, ownerID, entityType, id)
	if err == nil {
		// Запись появилась между запросами
		return fmt.Errorf("resource %s/%s changed concurrently", entityType, id)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*models.Resource, error) {
	res := &models.Resource{}
	var (
		data      []byte
		deleted   int
		updatedAt int64
	)
	if err := row.Scan(&res.OwnerID, &res.EntityType, &res.ID, &data, &deleted, &updatedAt); err != nil {
		return nil, err
	}
	res.Data = data
	res.Deleted = deleted != 0
	res.UpdatedAt = fromMillis(updatedAt)
	return res, nil
}
