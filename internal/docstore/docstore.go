// server/internal/docstore/docstore.go
// Package docstore is the minimal document-store surface the sync layer needs:
// create with a server-assigned createdAt, ordered/filtered queries, and
// push subscriptions that deliver the full result set on every change.
package docstore

import (
	"context"
	"errors"
	"time"
)

// FieldCreatedAt is assigned by the store on Create and is never taken from the client.
const FieldCreatedAt = "createdAt"

// ErrNotFound is returned by Get when no document has the given id.
var ErrNotFound = errors.New("docstore: document not found")

// Document is a raw, untrusted document. Nested documents are map[string]any,
// arrays are []any and timestamps are time.Time regardless of the backend.
type Document struct {
	ID     string
	Fields map[string]any
}

// Filter is an equality condition on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection string
	OrderBy    string
	Descending bool
	Where      []Filter
	Limit      int64
}

// Snapshot is one delivery of a subscription: either the complete current
// result set or a terminal error. After an error the channel is closed.
type Snapshot struct {
	Documents []Document
	At        time.Time
	Err       error
}

// CancelFunc releases a subscription. It is safe to call more than once and
// returns after the subscription goroutine has exited.
type CancelFunc func()

// Store is implemented by the Mongo and in-memory backends.
type Store interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query) (<-chan Snapshot, CancelFunc, error)
	Ping(ctx context.Context) error
}

// withoutReserved drops the fields a client must not set itself.
func withoutReserved(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == FieldCreatedAt || k == "_id" || k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
