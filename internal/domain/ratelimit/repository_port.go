// internal/domain/ratelimit/repository_port.go
package ratelimit

import (
	"context"
	"time"
)

// Store is the persistence port for usage records.
//
// Storage layout (Firestore):
// - collection: Options.CollectionName (default "usage_metadata")
// - docId: userId
// - fields: see Window.CountField / Window.ResetField, plus lastWrite
//
// Apply must run read, fn and write as one atomic unit per record so two
// concurrent callers cannot both pass an exhausted window.
type Store interface {
	// Apply reads the counters for key, calls fn and persists Outcome.Write.
	// lastWrite is stamped only when the outcome is accepted.
	// fn may be called more than once if the underlying transaction retries.
	Apply(ctx context.Context, key Key, fn func(State) Outcome) (Outcome, error)

	// Get reads the counters for key without writing.
	Get(ctx context.Context, key Key) (State, error)

	// Delete removes the user's whole record in collection.
	Delete(ctx context.Context, collection, userID string) error

	// DeleteStale removes records whose lastWrite is before the cutoff.
	// It returns the number of deleted records.
	DeleteStale(ctx context.Context, collection string, before time.Time) (int, error)
}

// Record is one stored usage record, as raw fields.
type Record struct {
	UserID string         `json:"userId"`
	Fields map[string]any `json:"fields"`
}

// StaleLister is implemented by stores that can enumerate what a
// DeleteStale call with the same cutoff would remove.
type StaleLister interface {
	ListStale(ctx context.Context, collection string, before time.Time) ([]Record, error)
}

// Archive keeps a copy of records before a sweep deletes them.
type Archive interface {
	Put(ctx context.Context, collection string, before time.Time, recs []Record) error
}
