package models

import (
	"encoding/json"
	"time"
)

// Record is a locally cached entity.
type Record struct {
	UpdatedAt  time.Time       `json:"updated_at"`  // время последней локальной записи
	EntityType string          `json:"entity_type"` // таблица, в которой лежит запись
	ID         string          `json:"id"`          // серверный или временный id
	Payload    json.RawMessage `json:"payload"`     // представление сущности
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}
