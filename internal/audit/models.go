package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names what happened to a document.
type Action string

const (
	ActionIngested          Action = "document_ingested"
	ActionIngestRejected    Action = "document_rejected"
	ActionRemoved           Action = "document_removed"
	ActionRevalidateRemoved Action = "document_invalidated"
	ActionAccountDeleted    Action = "account_deleted"
)

// Event is emitted from the processing layer to capture document lifecycle
// changes. It never carries the raw payload or holder names.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	DocumentID string    `json:"document_id,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	// Code is the error kind of a rejection.
	Code      string `json:"code,omitempty"`
	Device    string `json:"device,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
