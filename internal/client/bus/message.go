package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/offsync/internal/models"
)

// MessageType tags a cross-context message. The vocabulary is closed.
type MessageType string

const (
	// MessageOperationQueued: the interception layer put a mutation into the queue
	MessageOperationQueued MessageType = "operation-queued"
	// MessageSyncRequested: something asks the application to drain now
	MessageSyncRequested MessageType = "sync-requested"
)

// ErrUnknownMessage is returned for a message type outside the vocabulary.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is a tagged message exchanged between execution contexts.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OperationQueued is the payload of MessageOperationQueued.
type OperationQueued struct {
	OperationID   string               `json:"operation_id"`
	OperationType models.OperationType `json:"operation_type"`
	EntityType    string               `json:"entity_type"`
	EntityID      string               `json:"entity_id"`
}

// SyncRequested is the payload of MessageSyncRequested.
type SyncRequested struct {
	Reason string `json:"reason,omitempty"`
}

// NewOperationQueued builds the message announcing op.
func NewOperationQueued(op *models.Operation) Message {
	return newMessage(MessageOperationQueued, OperationQueued{
		OperationID:   op.ID,
		OperationType: op.Type,
		EntityType:    op.EntityType,
		EntityID:      op.EntityID,
	})
}

// NewSyncRequested builds a sync request.
func NewSyncRequested(reason string) Message {
	return newMessage(MessageSyncRequested, SyncRequested{Reason: reason})
}

func newMessage(t MessageType, payload any) Message {
	// Payload-структуры всегда сериализуются
	raw, _ := json.Marshal(payload)
	return Message{Type: t, Payload: raw}
}

// Validate rejects messages outside the vocabulary.
func (m Message) Validate() error {
	switch m.Type {
	case MessageOperationQueued, MessageSyncRequested:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownMessage, m.Type)
}

// DecodeMessage parses and validates a wire message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// OperationQueued decodes the payload of an operation-queued message.
func (m Message) OperationQueued() (OperationQueued, error) {
	var p OperationQueued
	if m.Type != MessageOperationQueued {
		return p, fmt.Errorf("message is %q, not %q", m.Type, MessageOperationQueued)
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p, nil
}

// SyncRequested decodes the payload of a sync-requested message.
func (m Message) SyncRequested() (SyncRequested, error) {
	var p SyncRequested
	if m.Type != MessageSyncRequested {
		return p, fmt.Errorf("message is %q, not %q", m.Type, MessageSyncRequested)
	}
	if len(m.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p, nil
}
