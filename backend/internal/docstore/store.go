// Package docstore is the document store contract the social core is written against,
// with a MongoDB binding for production and an in-memory binding for tests and local runs.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("document not found")
	// ErrDuplicateKey is returned when a write would violate a unique index
	ErrDuplicateKey = errors.New("duplicate key")
)

// Filter selects documents by equality on top-level fields.
// A filter value matches an array field when the array contains it.
type Filter map[string]interface{}

// Patch lists top-level fields to overwrite
type Patch map[string]interface{}

// SortField orders Find results; Field may be a dotted path into embedded documents
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls ordering and size of Find results
type FindOptions struct {
	Sort  []SortField
	Limit int64
}

// Store is a minimal document store. There are no multi-document transactions;
// callers needing mutual exclusion use unique indexes.
//
// Documents are Go structs with bson tags and a string "_id".
type Store interface {
	FindOne(ctx context.Context, collection string, filter Filter, out interface{}) error
	// Find decodes every match into out, which must be a pointer to a slice
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions, out interface{}) error
	Insert(ctx context.Context, collection string, doc interface{}) error
	UpdateByID(ctx context.Context, collection, id string, patch Patch) error
	DeleteMatching(ctx context.Context, collection string, filter Filter) (int64, error)
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Index declares a unique index a package needs before serving traffic
type Index struct {
	Collection string
	Field      string
}

// EnsureIndexes creates every unique index in order, stopping at the first failure
func EnsureIndexes(ctx context.Context, store Store, indexes ...Index) error {
	for _, idx := range indexes {
		if err := store.EnsureUniqueIndex(ctx, idx.Collection, idx.Field); err != nil {
			return err
		}
	}
	return nil
}
