package sync

import (
	"errors"
	"fmt"

	"github.com/iudanet/offsync/internal/models"
)

var (
	// ErrDrainInProgress is returned when a drain is triggered while another
	// pass is running. The trigger is coalesced into the running pass.
	ErrDrainInProgress = errors.New("drain already in progress")

	// ErrUnauthenticated stops a pass: no valid access token or the server
	// answered 401. Nothing is marked or removed.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrAborted is returned when the pass was cancelled by Abort
	ErrAborted = errors.New("drain aborted")

	// ErrOrphanOperation marks an operation on a temporary id that has no
	// queued create and no reconciliation to resolve it
	ErrOrphanOperation = errors.New("no create queued for temporary id")
)

// OperationError describes why one operation did not go through.
type OperationError struct {
	Err error
	Op  *models.Operation
	// Permanent is true when the operation was dropped from the queue
	Permanent bool
}

func (e *OperationError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s failure of %s: %v", kind, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
