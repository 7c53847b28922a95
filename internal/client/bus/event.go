package bus

import (
	"time"

	"github.com/iudanet/offsync/internal/models"
)

// EventKind identifies an application-facing event.
type EventKind string

const (
	EventIDChanged           EventKind = "id-changed"
	EventOperationSynced     EventKind = "operation-synced"
	EventOperationFailed     EventKind = "operation-failed"
	EventDrainStarted        EventKind = "drain-started"
	EventDrainFinished       EventKind = "drain-finished"
	EventStorageDegraded     EventKind = "storage-degraded"
	EventConnectivityChanged EventKind = "connectivity-changed"
	EventSessionRefreshed    EventKind = "session-refreshed"
	EventSessionGrace        EventKind = "session-grace"
	EventReauthRequired      EventKind = "reauth-required"
)

// Event notifies the application about something the engine did.
// Only the fields relevant to Kind are set.
type Event struct {
	At            time.Time
	Err           error
	Kind          EventKind
	EntityType    string
	EntityID      string
	OldID         string // EventIDChanged: временный id
	NewID         string // EventIDChanged: серверный id
	OperationID   string
	OperationType models.OperationType
	Detail        string
	Online        bool
}
