package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/offsync/internal/models"
)

// GetIdempotentResponse returns the remembered response, nil if the key is unknown
func (s *Storage) GetIdempotentResponse(ctx context.Context, ownerID, key string) (*models.IdempotentResponse, error) {
	query := `
		SELECT owner_id, key, status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE owner_id = ? AND key = ?
	`

	resp := &models.IdempotentResponse{}
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, ownerID, key).Scan(
		&resp.OwnerID,
		&resp.Key,
		&resp.StatusCode,
		&resp.ContentType,
		&resp.Body,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotent response: %w", err)
	}

	resp.CreatedAt = fromMillis(createdAt)
	return resp, nil
}

// SaveIdempotentResponse stores the response; the first one for a key wins
func (s *Storage) SaveIdempotentResponse(ctx context.Context, resp *models.IdempotentResponse) error {
	query := `
		INSERT INTO idempotency_keys (owner_id, key, status_code, content_type, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, key) DO NOTHING
	`

	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	_, err := s.db.ExecContext(ctx, query,
		resp.OwnerID,
		resp.Key,
		resp.StatusCode,
		resp.ContentType,
		body,
		toMillis(resp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save idempotent response: %w", err)
	}
	return nil
}

// DeleteIdempotentResponses removes responses older than before
func (s *Storage) DeleteIdempotentResponses(ctx context.Context, before time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_keys WHERE created_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete idempotent responses: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}
