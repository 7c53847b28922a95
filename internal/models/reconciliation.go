package models

import "time"

// Reconciliation is the durable record of an acknowledged create whose
// temporary id has not been rewritten everywhere yet. It is written before
// the create operation leaves the queue and deleted once the rewrite has
// been fully applied, so an interrupted rewrite resumes on the next drain.
type Reconciliation struct {
	CreatedAt   time.Time `json:"created_at"`
	Canonical   *Record   `json:"canonical"`    // ответ сервера, уже под серверным id
	EntityType  string    `json:"entity_type"`
	TempID      string    `json:"temp_id"`
	ServerID    string    `json:"server_id"`
	OperationID string    `json:"operation_id"` // create, который подтвердил сервер
	// Cancelled is set when the application deleted the entity while its
	// create was in flight; the rewrite then turns into a server-side delete.
	Cancelled bool `json:"cancelled"`
}
