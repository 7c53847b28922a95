package models

import (
	"encoding/json"
	"time"
)

// User представляет пользователя на стороне dev API
type User struct {
	ID           string    `json:"id"`            // UUID пользователя
	Username     string    `json:"username"`      // уникальный username
	PasswordHash string    `json:"password_hash"` // argon2id хеш пароля (base64)
	PasswordSalt string    `json:"password_salt"` // base64 encoded salt (32 bytes)
	CreatedAt    time.Time `json:"created_at"`    // время создания
	UpdatedAt    time.Time `json:"updated_at"`    // время последнего обновления
}

// RefreshToken представляет refresh token пользователя
type RefreshToken struct {
	ID        string    `json:"id"`         // UUID токена
	UserID    string    `json:"user_id"`    // ID пользователя
	TokenHash string    `json:"token_hash"` // SHA256 хеш токена
	ExpiresAt time.Time `json:"expires_at"` // время истечения
	CreatedAt time.Time `json:"created_at"` // время создания
}

// Resource is an entity stored by the dev API.
type Resource struct {
	UpdatedAt  time.Time       `json:"updated_at"`
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	OwnerID    string          `json:"owner_id"`
	Data       json.RawMessage `json:"data"`
	Deleted    bool            `json:"deleted"`
}

// IdempotentResponse is a response remembered for an Idempotency-Key.
type IdempotentResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	Key         string    `json:"key"`
	OwnerID     string    `json:"owner_id"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"body"`
	StatusCode  int       `json:"status_code"`
}
