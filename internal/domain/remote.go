package domain

import (
	"context"

	"github.com/google/uuid"
)

// EventKind is the kind of mutation carried by a ChangeEvent.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent is a single change-feed notification.
// Record is set for insert and update; ID is set for delete.
type ChangeEvent struct {
	Kind   EventKind `json:"kind"`
	Record Bookmark  `json:"record"`
	ID     string    `json:"id,omitempty"`
}

// TargetID returns the ID the event applies to, whatever its kind.
func (e ChangeEvent) TargetID() string {
	if e.Kind == EventDelete {
		return e.ID
	}
	return e.Record.ID
}

// Subscription is a live change feed.
//
// Events is closed when the feed is lost or closed. Close is synchronous
// and idempotent.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

// RemoteStore is the authoritative backend for bookmarks.
type RemoteStore interface {
	// CreateRecord persists a draft and returns the stored record with
	// its store-assigned ID and CreatedAt.
	CreateRecord(ctx context.Context, draft Draft) (Bookmark, error)

	// DeleteRecord removes a record. Deleting an unknown ID is not an error.
	DeleteRecord(ctx context.Context, id string) error

	// ListRecords returns every record of owner, newest first.
	ListRecords(ctx context.Context, owner string) ([]Bookmark, error)

	// SubscribeChanges opens a change feed filtered to owner.
	SubscribeChanges(ctx context.Context, owner string) (Subscription, error)
}

// TempIDPrefix marks IDs generated locally for optimistic records.
const TempIDPrefix = "tmp-"

// NewTempID returns a locally unique temporary identifier.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}
