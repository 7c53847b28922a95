package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationType is the kind of mutation an Operation carries.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// Valid reports whether t is one of the known operation types.
func (t OperationType) Valid() bool {
	switch t {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// Operation is a pending mutation waiting in the sync queue.
//
// ID is generated once on enqueue and sent as the Idempotency-Key on every
// attempt, so a replay of an already applied operation is recognized by the
// server. Seq orders operations FIFO.
type Operation struct {
	EnqueuedAt    time.Time       `json:"enqueued_at"`               // время постановки в очередь
	NextAttemptAt time.Time       `json:"next_attempt_at,omitempty"` // не раньше этого момента (backoff)
	ID            string          `json:"id"`                        // стабильный клиентский id
	Type          OperationType   `json:"type"`                      // create, update, delete
	EntityType    string          `json:"entity_type"`               // тип сущности
	EntityID      string          `json:"entity_id"`                 // id сущности
	LastError     string          `json:"last_error,omitempty"`      // последняя транзиентная ошибка
	Payload       json.RawMessage `json:"payload,omitempty"`         // тело запроса
	Seq           uint64          `json:"seq"`                       // позиция в FIFO
	Attempts      int             `json:"attempts"`                  // число неудачных попыток
}

// EntityKey identifies the entity chain the operation belongs to.
func (o *Operation) EntityKey() string {
	return o.EntityType + "/" + o.EntityID
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	c := *o
	if o.Payload != nil {
		c.Payload = append(json.RawMessage(nil), o.Payload...)
	}
	return &c
}

func (o *Operation) String() string {
	return fmt.Sprintf("%s %s/%s (%s)", o.Type, o.EntityType, o.EntityID, o.ID)
}
